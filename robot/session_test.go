package robot_test

import (
	"strings"
	"testing"

	"github.com/iwtcode/densoAdapter/internal/metrics"
	"github.com/iwtcode/densoAdapter/robot"
	"github.com/iwtcode/densoAdapter/robot/robottest"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) (*robot.Session, *robottest.Link, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	link := robottest.New()
	s := robot.NewSession(robot.Options{Dialer: link.Dialer(), Logger: logger})
	return s, link, hook
}

// connected возвращает подключённую сессию с очищенной историей вызовов.
func connected(t *testing.T) (*robot.Session, *robottest.Link, *test.Hook) {
	t.Helper()
	s, link, hook := newSession(t)
	require.NoError(t, s.Connect("127.0.0.1", robot.RC8, "sample"))
	link.Reset()
	hook.Reset()
	return s, link, hook
}

func logged(hook *test.Hook, substr string) bool {
	for _, e := range hook.AllEntries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestConnectSelectsProvider(t *testing.T) {
	cases := []struct {
		variant  robot.ControllerVariant
		provider string
	}{
		{robot.RC8, "CaoProv.DENSO.VRC"},
		{robot.RC9, "CaoProv.DENSO.VRC9"},
	}
	for _, tc := range cases {
		t.Run(string(tc.variant), func(t *testing.T) {
			s, link, _ := newSession(t)
			require.NoError(t, s.Connect("127.0.0.1", tc.variant, "sample"))
			defer s.Close()

			call, ok := link.Last("ControllerConnect")
			require.True(t, ok)
			assert.Equal(t, []interface{}{"sample_App", tc.provider, "localhost", "@IfNotMember"}, call.Args)
			assert.Equal(t, "127.0.0.1", link.DialHost)
			assert.Equal(t, 5007, link.DialPort)
			assert.Equal(t, robot.StateConnected, s.State())

			assert.Equal(t, []string{
				"ServiceStart", "ControllerConnect", "ControllerGetRobot", "ControllerGetVariable",
			}, link.Methods())
			getVar, _ := link.Last("ControllerGetVariable")
			assert.Equal(t, "@Mode", getVar.Args[0])
		})
	}
}

func TestConnectUnknownVariantMakesNoCalls(t *testing.T) {
	s, link, _ := newSession(t)

	err := s.Connect("127.0.0.1", robot.ControllerVariant("RC7"), "sample")
	require.Error(t, err)

	var f *robot.Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, robot.KindConfiguration, f.Kind)
	assert.True(t, errors.Is(err, robot.ErrUnknownVariant))
	assert.Empty(t, link.Calls())
	assert.Empty(t, link.DialHost)
	assert.Equal(t, robot.StateDisconnected, s.State())
}

func TestConnectExplicitPort(t *testing.T) {
	s, link, _ := newSession(t)
	require.NoError(t, s.Connect("10.0.0.5:49152", robot.RC9, "cell"))
	defer s.Close()

	assert.Equal(t, "10.0.0.5", link.DialHost)
	assert.Equal(t, 49152, link.DialPort)
}

func TestConnectPartialFailureKeepsLinkForTeardown(t *testing.T) {
	s, link, _ := newSession(t)
	link.FailNext("ControllerGetRobot", robottest.Remote(-2147467259))

	require.Error(t, s.Connect("127.0.0.1", robot.RC8, "sample"))
	assert.Equal(t, robot.StateDisconnected, s.State())

	link.Reset()
	require.NoError(t, s.Disconnect())
	assert.Equal(t, []string{"RobotExecute:GiveArm", "ControllerDisconnect", "ServiceStop", "Close"}, link.Methods())
}

func TestConnectTwiceReleasesPreviousHandles(t *testing.T) {
	s, link, _ := connected(t)

	require.NoError(t, s.Connect("127.0.0.1", robot.RC8, "sample"))
	assert.Equal(t, 1, link.Count("RobotRelease"))
	assert.Equal(t, 1, link.Count("ControllerDisconnect"))
	assert.Equal(t, 1, link.Count("ControllerConnect"))
	require.NoError(t, s.Close())
}

func TestDisconnectReleasesInOrder(t *testing.T) {
	s, link, _ := connected(t)

	require.NoError(t, s.Disconnect())
	assert.Equal(t, []string{
		"RobotExecute:GiveArm",
		"RobotRelease",
		"VariableRelease",
		"ControllerDisconnect",
		"ServiceStop",
		"Close",
	}, link.Methods())
	assert.True(t, link.Closed())
	assert.Equal(t, robot.StateDisconnected, s.State())
	assert.Zero(t, s.Handles().Controller())
	assert.Zero(t, s.Handles().Arm())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	s, link, _ := connected(t)

	require.NoError(t, s.Disconnect())
	n := len(link.Calls())

	require.NoError(t, s.Disconnect())
	require.NoError(t, s.Close())
	assert.Len(t, link.Calls(), n)
}

func TestDisconnectWithoutConnectIsNoOp(t *testing.T) {
	s, link, _ := newSession(t)
	require.NoError(t, s.Disconnect())
	assert.Empty(t, link.Calls())
}

func TestDisconnectContinuesAfterReleaseFailure(t *testing.T) {
	s, link, _ := connected(t)
	link.FailNext("RobotRelease", errors.New("boom"))

	err := s.Disconnect()
	require.Error(t, err)
	assert.Equal(t, 1, link.Count("ControllerDisconnect"))
	assert.Equal(t, 1, link.Count("ServiceStop"))
	assert.True(t, link.Closed())
}

func TestLifecycleOpsWithoutLinkAreSoftNoOps(t *testing.T) {
	s, link, hook := newSession(t)

	ops := map[string]func() error{
		"StandbyOn":          s.StandbyOn,
		"StandbyOff":         s.StandbyOff,
		"ClearErrors":        s.ClearErrors,
		"ExecuteCalset":      s.ExecuteCalset,
		"Reconnect":          s.Reconnect,
		"GoToStartPosition":  s.GoToStartPosition,
		"SetExecutableToken": func() error { return s.SetExecutableToken("Ethernet") },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			hook.Reset()
			err := op()
			require.Error(t, err)

			var f *robot.Fault
			require.True(t, errors.As(err, &f))
			assert.Equal(t, robot.KindTransport, f.Kind)
			assert.True(t, errors.Is(err, robot.ErrLinkNotInitialized))
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, "b-CAP client is not initialized", hook.LastEntry().Message)
		})
	}
	assert.Empty(t, link.Calls())
}

func TestStandbyOn(t *testing.T) {
	s, link, _ := connected(t)

	require.NoError(t, s.StandbyOn())
	assert.Equal(t, []string{"RobotExecute:TakeArm", "RobotExecute:Motor", "RobotExecute:CurPos"}, link.Methods())

	takeArm, _ := link.Last("RobotExecute:TakeArm")
	assert.Equal(t, []interface{}{[]interface{}{int32(0), int32(0)}}, takeArm.Args)
	motor, _ := link.Last("RobotExecute:Motor")
	assert.Equal(t, []interface{}{[]interface{}{int32(1), int32(0)}}, motor.Args)

	assert.Equal(t, robot.Pose(link.Pos), s.Position())
	assert.Nil(t, s.Target())
	assert.Equal(t, robot.MotorOn, s.Motor())
	assert.Equal(t, robot.StateStandby, s.State())
}

func TestStandbyOnRetriesMotorOnTokenFault(t *testing.T) {
	s, link, hook := connected(t)
	link.ErrorDescriptions[robot.CodeTokenOwnership] = "Executable token is required"
	link.FailNext("RobotExecute:Motor", robottest.Remote(robot.CodeTokenOwnership))
	retries := testutil.ToFloat64(metrics.Retries.WithLabelValues("Motor"))

	require.NoError(t, s.StandbyOn())
	assert.Equal(t, retries+1, testutil.ToFloat64(metrics.Retries.WithLabelValues("Motor")))

	assert.Equal(t, 1, link.Count("RobotExecute:TakeArm"))
	assert.Equal(t, 2, link.Count("RobotExecute:Motor"))
	assert.Equal(t, 1, link.Count("ControllerExecute:GetErrorDescription"))
	assert.True(t, logged(hook, "0x83501028"))
	assert.True(t, logged(hook, "Executable token is required"))
	assert.Equal(t, robot.MotorOn, s.Motor())
}

func TestStandbyOnRetryFailureIsReturned(t *testing.T) {
	s, link, _ := connected(t)
	link.FailNext("RobotExecute:Motor", robottest.Remote(robot.CodeTokenOwnership))
	link.FailNext("RobotExecute:Motor", robottest.Remote(robot.CodeTokenOwnership))

	err := s.StandbyOn()
	require.Error(t, err)
	assert.Equal(t, 2, link.Count("RobotExecute:Motor"))
	assert.Equal(t, 0, link.Count("RobotExecute:CurPos"))
	assert.Equal(t, robot.MotorOff, s.Motor())
}

func TestStandbyOnDoesNotRetryOtherFaults(t *testing.T) {
	s, link, hook := connected(t)
	const code int32 = -2147467259 // 0x80004005
	link.FailNext("RobotExecute:Motor", robottest.Remote(code))

	err := s.StandbyOn()
	require.Error(t, err)

	var f *robot.Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, robot.KindRemote, f.Kind)
	assert.Equal(t, code, f.Code)
	assert.False(t, f.Recoverable())
	assert.Equal(t, 1, link.Count("RobotExecute:Motor"))
	assert.True(t, logged(hook, "0x80004005"))
}

func TestStandbyOff(t *testing.T) {
	s, link, _ := connected(t)
	require.NoError(t, s.StandbyOn())
	_, err := s.MoveByDeviation(robot.Deviation{10, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.NotNil(t, s.Target())
	link.Reset()

	require.NoError(t, s.StandbyOff())
	assert.Equal(t, []string{"RobotExecute:GiveArm", "RobotExecute:Motor"}, link.Methods())
	motor, _ := link.Last("RobotExecute:Motor")
	assert.Equal(t, []interface{}{[]interface{}{int32(0), int32(0)}}, motor.Args)
	assert.Nil(t, s.Target())
	assert.Equal(t, robot.MotorOff, s.Motor())
	assert.Equal(t, robot.StateConnected, s.State())
}

func TestStandbyOffClearsTargetOnFailure(t *testing.T) {
	s, link, _ := connected(t)
	_, err := s.MoveByDeviation(robot.Deviation{1, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	link.FailNext("RobotExecute:GiveArm", errors.New("arm busy"))

	require.Error(t, s.StandbyOff())
	assert.Nil(t, s.Target())
	assert.Equal(t, 0, link.Count("RobotExecute:Motor"))
}

func TestControllerCommands(t *testing.T) {
	s, link, _ := connected(t)

	require.NoError(t, s.ClearErrors())
	require.NoError(t, s.SetExecutableToken("Ethernet"))
	require.NoError(t, s.ExecuteCalset())

	assert.Equal(t, []string{
		"ControllerExecute:ClearError",
		"ControllerExecute:SetExToken",
		"RobotExecute:AutoCal",
	}, link.Methods())
	tok, _ := link.Last("ControllerExecute:SetExToken")
	assert.Equal(t, []interface{}{[]interface{}{"Ethernet"}}, tok.Args)
	assert.Equal(t, s.Handles().Controller(), tok.Handle)
}

func TestReconnect(t *testing.T) {
	s, link, _ := connected(t)

	require.NoError(t, s.Reconnect())
	assert.Equal(t, []string{
		"RobotExecute:GiveArm", "RobotRelease", "VariableRelease", "ControllerDisconnect", "ServiceStop", "Close",
		"ServiceStart", "ControllerConnect", "ControllerGetRobot", "ControllerGetVariable",
		"RobotExecute:AutoCal",
		"RobotExecute:TakeArm", "RobotExecute:Motor", "RobotExecute:CurPos",
	}, link.Methods())
	assert.Equal(t, robot.StateStandby, s.State())
	require.NoError(t, s.Close())
}

func TestReconnectHaltsOnFirstFailure(t *testing.T) {
	s, link, _ := connected(t)
	link.FailNext("RobotExecute:AutoCal", robottest.Remote(-2147467259))

	require.Error(t, s.Reconnect())
	assert.Equal(t, 0, link.Count("RobotExecute:TakeArm"))
	assert.Equal(t, 0, link.Count("RobotExecute:Motor"))
}

// Полный сценарий: подключение, включение, одно смещение, выключение, отключение.
func TestSessionEndToEnd(t *testing.T) {
	s, link, _ := newSession(t)
	defer s.Close()

	require.NoError(t, s.Connect("127.0.0.1", robot.RC8, "sample"))
	require.NoError(t, s.StandbyOn())

	link.Reset()
	pose, err := s.MoveByDeviation(robot.Deviation{10, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, link.Count("RobotExecute:CurPos"))
	assert.Equal(t, 1, link.Count("RobotExecute:Dev"))
	assert.Equal(t, 1, link.Count("RobotMove"))
	assert.Equal(t, pose, s.Target())
	assert.InDelta(t, link.Pos[0]+10, s.Target()[0], 1e-9)

	require.NoError(t, s.StandbyOff())
	assert.Nil(t, s.Target())

	link.Reset()
	require.NoError(t, s.Disconnect())
	methods := link.Methods()
	idx := func(key string) int {
		for i, m := range methods {
			if m == key {
				return i
			}
		}
		return -1
	}
	require.NotEqual(t, -1, idx("RobotRelease"))
	assert.Less(t, idx("RobotRelease"), idx("ControllerDisconnect"))
	assert.Less(t, idx("ControllerDisconnect"), idx("ServiceStop"))
}

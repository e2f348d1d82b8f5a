package robot_test

import (
	"testing"

	"github.com/iwtcode/densoAdapter/bcap"
	"github.com/iwtcode/densoAdapter/robot"
	"github.com/iwtcode/densoAdapter/robot/robottest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenOwnershipConstant(t *testing.T) {
	assert.Equal(t, int32(-2091904984), robot.CodeTokenOwnership)
	assert.Equal(t, "83501028", robot.FormatCode(robot.CodeTokenOwnership))
}

func TestFormatCode(t *testing.T) {
	assert.Equal(t, "80004005", robot.FormatCode(-2147467259))
	assert.Equal(t, "ffffffff", robot.FormatCode(-1))
	assert.Equal(t, "ff", robot.FormatCode(255))
	assert.Equal(t, "0", robot.FormatCode(0))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind robot.FaultKind
	}{
		{"remote", robottest.Remote(-2147467259), robot.KindRemote},
		{"wrapped remote", errors.Wrap(robottest.Remote(-1), "Robot_Execute Motor"), robot.KindRemote},
		{"transport", &bcap.TransportError{Op: "dial", Err: errors.New("refused")}, robot.KindTransport},
		{"closed", bcap.ErrClosed, robot.KindTransport},
		{"no link", robot.ErrLinkNotInitialized, robot.KindTransport},
		{"variant", errors.Wrap(robot.ErrUnknownVariant, "RC7"), robot.KindConfiguration},
		{"address", robot.ErrInvalidAddress, robot.KindConfiguration},
		{"generic", errors.New("boom"), robot.KindGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := robot.Classify("op", tc.err)
			require.NotNil(t, f)
			assert.Equal(t, tc.kind, f.Kind)
			assert.Equal(t, "op", f.Op)
		})
	}
	assert.Nil(t, robot.Classify("op", nil))
}

func TestClassifyKeepsExistingFault(t *testing.T) {
	orig := &robot.Fault{Kind: robot.KindRemote, Op: "first", Code: 5}
	assert.Same(t, orig, robot.Classify("second", errors.Wrap(orig, "ctx")))
}

func TestFaultRecord(t *testing.T) {
	f := robot.Classify("StandbyOn", robottest.Remote(robot.CodeTokenOwnership))
	f.Description = "token"

	rec := f.Record()
	assert.Equal(t, "remote", rec.Kind)
	assert.Equal(t, robot.CodeTokenOwnership, rec.Code)
	assert.Equal(t, "83501028", rec.Hex)
	assert.True(t, rec.Recoverable)
	assert.Contains(t, rec.Message, "0x83501028")
	assert.Contains(t, rec.Message, "token")

	g := robot.Classify("Connect", errors.New("boom")).Record()
	assert.False(t, g.Recoverable)
	assert.Empty(t, g.Hex)
	assert.Equal(t, "Connect: boom", g.Message)
}

func TestRemoteFaultWithoutControllerLogsTypeAndMessage(t *testing.T) {
	s, link, hook := newSession(t)
	link.FailNext("ServiceStart", robottest.Remote(-2147467259))

	require.Error(t, s.Connect("127.0.0.1", robot.RC8, "sample"))
	assert.Equal(t, 0, link.Count("ControllerExecute:GetErrorDescription"))
	assert.True(t, logged(hook, "bcap.HResultError : "))
	assert.False(t, logged(hook, "ORiN error"))
}

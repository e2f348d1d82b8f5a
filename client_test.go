package denso_test

import (
	"os"
	"path/filepath"
	"testing"

	denso "github.com/iwtcode/densoAdapter"
	"github.com/iwtcode/densoAdapter/robot"
	"github.com/iwtcode/densoAdapter/robot/robottest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func testConfig() *denso.Config {
	return &denso.Config{
		IP:          "127.0.0.1",
		Port:        5007,
		TimeoutMs:   2000,
		Controller:  "RC8",
		SessionName: "sample",
		Speed:       75,
		LogLevel:    "off",
	}
}

func setupClient(t *testing.T) (*denso.Client, *robottest.Link) {
	t.Helper()
	link := robottest.New()
	c, err := denso.NewWithDialer(testConfig(), link.Dialer())
	require.NoError(t, err, "не удалось создать клиента")
	t.Cleanup(func() { _ = c.Close() })
	return c, link
}

func TestNewConnects(t *testing.T) {
	c, link := setupClient(t)

	assert.Equal(t, robot.StateConnected, c.Session().State())
	call, ok := link.Last("ControllerConnect")
	require.True(t, ok)
	assert.Equal(t, "sample_App", call.Args[0])
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Controller = "RC7"
	link := robottest.New()

	_, err := denso.NewWithDialer(cfg, link.Dialer())
	require.Error(t, err)
	assert.Empty(t, link.Calls())
}

func TestNewReleasesOnConnectFailure(t *testing.T) {
	link := robottest.New()
	link.FailNext("ControllerGetVariable", robottest.Remote(-2147467259))

	_, err := denso.NewWithDialer(testConfig(), link.Dialer())
	require.Error(t, err)
	assert.True(t, link.Closed())
	assert.Equal(t, 1, link.Count("RobotRelease"))
	assert.Equal(t, 1, link.Count("ControllerDisconnect"))
}

// Сценарий запуска: очистка ошибок, переподключение, включение, выгрузка программ.
func TestRunFlow(t *testing.T) {
	c, link := setupClient(t)
	link.Files = []*robottest.Node{{Name: "Pro1.pcs", Content: "END"}}
	chdir(t, t.TempDir())

	require.NoError(t, c.ClearErrors())
	require.NoError(t, c.Reconnect())
	require.NoError(t, c.StandbyOn())

	report, err := c.ArchivePrograms("")
	require.NoError(t, err)
	assert.Equal(t, "ABC123_COBOTTA_2_16_1", report.Root)
	assert.FileExists(t, filepath.Join("ABC123_COBOTTA_2_16_1", "Pro1.pcs"))

	tel, err := c.GetTelemetry()
	require.NoError(t, err)
	assert.Equal(t, "auto", string(tel.Mode))

	require.NoError(t, c.StandbyOff())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

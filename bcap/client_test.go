package bcap

import (
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve поднимает b-CAP сервер на net.Pipe; handler возвращает ответы на каждый запрос.
func serve(t *testing.T, timeout time.Duration, handler func(req *packet) []*packet) *Client {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	go func() {
		defer serverConn.Close()
		for {
			req, err := readPacket(serverConn)
			if err != nil {
				return
			}
			for _, resp := range handler(req) {
				data, err := resp.MarshalBinary()
				if err != nil {
					return
				}
				if _, err := serverConn.Write(data); err != nil {
					return
				}
			}
		}
	}()

	c := NewClient(clientConn, timeout)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func reply(req *packet, hr HResult, args ...interface{}) *packet {
	return &packet{serial: req.serial, id: int32(hr), args: args}
}

func TestClientControllerConnect(t *testing.T) {
	var got *packet
	c := serve(t, time.Second, func(req *packet) []*packet {
		got = req
		return []*packet{reply(req, SOK, int32(42))}
	})

	h, err := c.ControllerConnect("sample_App", "CaoProv.DENSO.VRC", "localhost", "@IfNotMember")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), h)
	assert.Equal(t, int32(FuncControllerConnect), got.id)
	assert.Equal(t, uint16(1), got.serial)
	assert.Equal(t, []interface{}{"sample_App", "CaoProv.DENSO.VRC", "localhost", "@IfNotMember"}, got.args)
}

func TestClientWaitsThroughExecuting(t *testing.T) {
	pose := []float64{100, 0, 300, 180, 0, 180, -1}
	c := serve(t, time.Second, func(req *packet) []*packet {
		return []*packet{
			reply(req, SExecuting),
			reply(req, SExecuting),
			reply(req, SOK, pose),
		}
	})

	v, err := c.RobotExecute(2, "CurPos", nil)
	require.NoError(t, err)
	assert.Equal(t, pose, v)
}

func TestClientSkipsForeignSerial(t *testing.T) {
	c := serve(t, time.Second, func(req *packet) []*packet {
		stale := reply(req, SOK, "stale")
		stale.serial = req.serial + 100
		return []*packet{stale, reply(req, SOK, "fresh")}
	})

	v, err := c.FileGetName(5)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestClientRemoteFault(t *testing.T) {
	c := serve(t, time.Second, func(req *packet) []*packet {
		return []*packet{reply(req, HResult(-0x7CAFEFD8))}
	})

	_, err := c.RobotExecute(2, "Motor", []interface{}{int32(1), int32(0)})
	require.Error(t, err)

	var hr *HResultError
	require.True(t, errors.As(err, &hr))
	assert.Equal(t, int32(-2091904984), hr.Code())
	assert.Equal(t, FuncRobotExecute, hr.Func)
	assert.Contains(t, err.Error(), "83501028")
}

func TestClientTimeout(t *testing.T) {
	c := serve(t, 20*time.Millisecond, func(req *packet) []*packet { return nil })

	err := c.ServiceStart("")
	require.Error(t, err)
	var te *TransportError
	assert.True(t, errors.As(err, &te))
}

func TestClientClosed(t *testing.T) {
	c := serve(t, time.Second, func(req *packet) []*packet { return []*packet{reply(req, SOK)} })

	require.NoError(t, c.ServiceStop())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	err := c.ServiceStop()
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestClientNames(t *testing.T) {
	c := serve(t, time.Second, func(req *packet) []*packet {
		return []*packet{reply(req, SOK, []interface{}{"Pro1.pcs", `Lib\`})}
	})

	names, err := c.ControllerGetFileNames(1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pro1.pcs", `Lib\`}, names)
}

func TestHResultHex(t *testing.T) {
	assert.Equal(t, "83501028", HResult(-2091904984).Hex())
	assert.Equal(t, "900", SExecuting.Hex())
	assert.True(t, HResult(-1).Failed())
	assert.False(t, SExecuting.Failed())
}

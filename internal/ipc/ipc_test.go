package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func socketPath(t *testing.T) string {
	t.Helper()
	// unix socket paths are length limited; t.TempDir can be long.
	dir, err := os.MkdirTemp("", "ipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "j.sock")
}

func TestRoundTrip(t *testing.T) {
	path := socketPath(t)
	srv, err := StartServer(path, func(ctx context.Context, msg ControlMessage) Response {
		switch msg.Cmd {
		case CmdStatus:
			return Response{OK: true, Status: "Speaking"}
		case CmdJournal:
			return Response{OK: true}.WithData(map[string]string{"n": msg.Args["n"]})
		default:
			return Fail(errors.New("unknown command " + msg.Cmd))
		}
	})
	require.NoError(t, err)
	defer srv.Close()

	resp, err := SendCommand(path, CmdStatus)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "Speaking", resp.Status)

	resp, err = Send(context.Background(), path, ControlMessage{Cmd: CmdJournal, Args: map[string]string{"n": "3"}})
	require.NoError(t, err)
	var data map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "3", data["n"])

	_, err = SendCommand(path, "trigger")
	assert.ErrorContains(t, err, "unknown command trigger")
}

func TestSendWithoutDaemon(t *testing.T) {
	_, err := SendCommand(socketPath(t), CmdStop)
	assert.Error(t, err)
}

func TestCloseRemovesSocket(t *testing.T) {
	path := socketPath(t)
	srv, err := StartServer(path, func(context.Context, ControlMessage) Response { return Response{OK: true} })
	require.NoError(t, err)
	assert.Equal(t, path, srv.Path())

	require.NoError(t, srv.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

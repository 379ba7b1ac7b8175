package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/sphsim/internal/sim"
	"github.com/san-kum/sphsim/internal/sph"
)

const testParticles = 20

func newTestServer(t *testing.T) (*Server, *sim.Shared, *httptest.Server) {
	t.Helper()
	p := sph.DefaultParams()
	p.NumParticles = testParticles
	st, err := sph.New(p)
	require.NoError(t, err)

	shared := sim.NewShared(st)
	srv := NewServer(shared, 5*time.Millisecond, logr.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, shared, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readBinary(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)
	return data
}

func control(t *testing.T, conn *websocket.Conn, ctl string) Status {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(ctl)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)

	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	return st
}

func TestInitialFrameIsPositions(t *testing.T) {
	_, shared, ts := newTestServer(t)
	conn := dial(t, ts)

	data := readBinary(t, conn)
	require.Len(t, data, 8*testParticles)

	vals := DecodeFloat32s(data)
	shared.Read(func(st *sph.State) {
		for i := 0; i < testParticles; i++ {
			assert.InDelta(t, st.X()[i], float64(vals[i]), 1e-6)
			assert.InDelta(t, st.Y()[i], float64(vals[testParticles+i]), 1e-6)
		}
	})
}

func TestModeSwitchAndBroadcast(t *testing.T) {
	srv, _, ts := newTestServer(t)
	conn := dial(t, ts)
	readBinary(t, conn)

	st := control(t, conn, `{"mode":"flat"}`)
	assert.Equal(t, ModeFlat, st.Mode)
	assert.Equal(t, testParticles, st.Particles)
	assert.Equal(t, 1, st.Clients)
	assert.Empty(t, st.Error)

	srv.Broadcast()
	assert.Len(t, readBinary(t, conn), 4*int(sph.NumFields)*testParticles)
}

func TestMixedModesShareBroadcast(t *testing.T) {
	srv, _, ts := newTestServer(t)
	a := dial(t, ts)
	b := dial(t, ts)
	readBinary(t, a)
	readBinary(t, b)
	control(t, b, `{"mode":"flat"}`)

	srv.Broadcast()
	assert.Len(t, readBinary(t, a), 8*testParticles)
	assert.Len(t, readBinary(t, b), 4*int(sph.NumFields)*testParticles)
}

func TestControlErrors(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dial(t, ts)
	readBinary(t, conn)

	st := control(t, conn, `{"mode":"voxels"}`)
	assert.Contains(t, st.Error, "unknown mode")
	assert.Equal(t, ModePositions, st.Mode)

	st = control(t, conn, `not json`)
	assert.Contains(t, st.Error, "invalid control message")
}

func TestPauseAndReset(t *testing.T) {
	srv, shared, ts := newTestServer(t)
	conn := dial(t, ts)
	readBinary(t, conn)

	shared.Advance(3)
	st := control(t, conn, `{"paused":true,"reset":true}`)
	assert.True(t, st.Paused)
	assert.Equal(t, 0, st.Steps)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := srv.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	shared.Read(func(s *sph.State) {
		assert.Equal(t, 0, s.Steps(), "paused server must not step")
	})
}

func TestRunSteps(t *testing.T) {
	srv, shared, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	srv.Run(ctx)

	shared.Read(func(s *sph.State) {
		assert.Positive(t, s.Steps())
		assert.Zero(t, s.Steps()%s.Params().StepsPerFrame)
	})
}

func TestStatusEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, testParticles, st.Particles)
	assert.Equal(t, 0, st.Clients)
}

func TestClientRemovedOnClose(t *testing.T) {
	srv, _, ts := newTestServer(t)
	conn := dial(t, ts)
	readBinary(t, conn)
	require.Equal(t, 1, srv.Clients())

	conn.Close()
	assert.Eventually(t, func() bool { return srv.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFollowDoesNotStep(t *testing.T) {
	srv, shared, ts := newTestServer(t)
	srv.Follow = true
	conn := dial(t, ts)
	readBinary(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	srv.Run(ctx)

	shared.Read(func(s *sph.State) { assert.Equal(t, 0, s.Steps()) })
	assert.NotEmpty(t, readBinary(t, conn), "follow mode still broadcasts")
}

func TestDivergedStatePausesStream(t *testing.T) {
	srv, shared, ts := newTestServer(t)
	shared.Read(func(s *sph.State) { s.SetPosition(0, 100, 0, 0) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	srv.Run(ctx)

	assert.True(t, srv.paused.Load(), "diverged state must pause the stream")
	shared.Read(func(s *sph.State) { assert.Equal(t, 0, s.Steps()) })

	conn := dial(t, ts)
	readBinary(t, conn)
	st := control(t, conn, `{"reset":true}`)
	assert.False(t, st.Paused, "reset resumes the stream")
}

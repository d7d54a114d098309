package dashd

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/openclaw/dashboard/dashd/httpapi"
	"github.com/openclaw/dashboard/dashsdk"
)

const websocketWriteTimeout = 10 * time.Second

func (api *API) status(rw http.ResponseWriter, r *http.Request) {
	parser := httpapi.NewQueryParamParser()
	light := parser.Boolean(r.URL.Query(), false, "light")
	if len(parser.Errors) > 0 {
		httpapi.Write(rw, http.StatusBadRequest, dashsdk.Response{
			Message:     "Invalid query parameters.",
			Validations: parser.Errors,
		})
		return
	}
	status, err := api.Status.FullStatus(r.Context(), light)
	if err != nil {
		httpapi.InternalServerError(rw, err)
		return
	}
	httpapi.Write(rw, http.StatusOK, status)
}

// statusWebsocket pushes the light status immediately and then on every
// push interval until either side closes.
func (api *API) statusWebsocket(rw http.ResponseWriter, r *http.Request) {
	api.websocketWaitMutex.Lock()
	api.websocketWaitGroup.Add(1)
	api.websocketWaitMutex.Unlock()
	defer api.websocketWaitGroup.Done()

	conn, err := websocket.Accept(rw, r, &websocket.AcceptOptions{
		OriginPatterns: api.CORSAllowedOrigins,
	})
	if err != nil {
		// Accept has already written a response.
		return
	}

	// Nothing is read from the client, but reading is how close frames
	// and disconnects are noticed. The read side is tied to the request
	// only: shutting the API down must still be able to send a close frame.
	readCtx := conn.CloseRead(r.Context())
	ctx, cancel := context.WithCancel(readCtx)
	defer cancel()
	stop := context.AfterFunc(api.ctx, cancel)
	defer stop()

	push := func() error {
		status, err := api.Status.FullStatus(ctx, true)
		if err != nil {
			return xerrors.Errorf("collect status: %w", err)
		}
		wctx, wcancel := context.WithTimeout(ctx, websocketWriteTimeout)
		defer wcancel()
		return wsjson.Write(wctx, conn, dashsdk.StatusEvent{
			Type:    dashsdk.StatusEventUpdate,
			Payload: status,
		})
	}

	err = push()
	if err == nil {
		err = api.Clock.TickerFunc(ctx, api.StatusPushInterval, push, "dashd", "status_push").Wait()
	}
	switch {
	case api.ctx.Err() != nil:
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	case readCtx.Err() != nil:
		// The client closed or dropped the connection.
		return
	}
	api.Logger.Debug(ctx, "status push stopped", slog.Error(err))
	_ = conn.Close(websocket.StatusInternalError, httpapi.WebsocketCloseSprintf("push status: %s", err))
}

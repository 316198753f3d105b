package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golfvision/golfball-detection-service/models"
	"github.com/gorilla/websocket"
)

// handleStream accepts binary image frames over a websocket and answers
// each with a DetectionResponse. A bad frame gets a failure reply and the
// connection stays open.
func (s *AppState) handleStream(w http.ResponseWriter, r *http.Request) {
	origins := s.Config.AllowedOrigins()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(origins, r.Header.Get("Origin"))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warning("Upgrade error: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(s.Config.MaxUploadBytes())
	s.Logger.Info("Stream client connected: %s", r.RemoteAddr)

	frame := 0
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.Logger.Warning("Stream read error from %s: %v", r.RemoteAddr, err)
			}
			return
		}
		frame++
		requestID := fmt.Sprintf("%d-%d", time.Now().UnixNano(), frame)

		var resp models.DetectionResponse
		if messageType != websocket.BinaryMessage {
			resp = models.Failure(errors.New(MsgExpectedImage))
		} else {
			outcome := s.Pipeline.Run(context.Background(), data, requestID)
			logTimings(s.Logger, outcome.Timings)
			if !outcome.OK() {
				s.Logger.Error("RequestID: %s - "+MsgProcessingFailed, requestID, outcome.Err)
			}
			resp = outcome.Response
		}

		if err := conn.WriteJSON(resp); err != nil {
			s.Logger.Warning("Stream write error to %s: %v", r.RemoteAddr, err)
			return
		}
	}
}

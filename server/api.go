package server

import (
	"errors"
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/cyclopcam/yorubaocr/pkg/history"
	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/cyclopcam/yorubaocr/pkg/nnrunner"
	"github.com/cyclopcam/yorubaocr/pkg/orchestrator"
	"github.com/cyclopcam/yorubaocr/pkg/perfstats"
	"github.com/cyclopcam/yorubaocr/pkg/wwwx"
	"github.com/cyclopcam/yorubaocr/server/config"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()
	limit := s.config.RateLimit
	window := config.RateLimitWindow

	www.Handle(s.Log, router, "GET", "/api/ping", s.httpPing)
	www.Handle(s.Log, router, "GET", "/api/state", s.httpGetState)
	www.Handle(s.Log, router, "GET", "/api/state/ws", s.httpStateWebSocket)
	www.Handle(s.Log, router, "GET", "/api/history", s.httpGetHistory)
	www.Handle(s.Log, router, "GET", "/api/model", s.httpGetModel)
	www.Handle(s.Log, router, "GET", "/api/stats", s.httpGetStats)
	wwwx.HandleLimited(s.Log, router, "POST", "/api/select", limit, window, s.httpSelect)
	wwwx.HandleLimited(s.Log, router, "POST", "/api/capture", limit, window, s.httpCapture)
	wwwx.HandleLimited(s.Log, router, "POST", "/api/retry", limit, window, s.httpRetry)
	wwwx.HandleLimited(s.Log, router, "POST", "/api/clear", limit, window, s.httpClear)

	s.httpRouter = router
	return nil
}

// Response to any request that runs a prediction cycle
type cycleResponse struct {
	Result     *orchestrator.Result  `json:"result,omitempty"`
	Cancelled  bool                  `json:"cancelled,omitempty"`  // User closed the picker
	Superseded bool                  `json:"superseded,omitempty"` // A newer request took over. See snapshot for its state.
	Snapshot   orchestrator.Snapshot `json:"snapshot"`
}

func (s *Server) sendCycle(w http.ResponseWriter, result *orchestrator.Result, err error) {
	resp := cycleResponse{Result: result}
	switch {
	case err == nil:
	case errors.Is(err, orchestrator.ErrUserCancelled):
		resp.Cancelled = true
	case errors.Is(err, orchestrator.ErrSuperseded):
		resp.Superseded = true
	case errors.Is(err, orchestrator.ErrNoImage):
		www.PanicBadRequestf("%v", err)
	default:
		www.Check(err)
	}
	resp.Snapshot = s.orchestrator.Snapshot()
	wwwx.CacheNever(w)
	www.SendJSON(w, &resp)
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendOK(w)
}

func (s *Server) httpGetState(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	wwwx.CacheNever(w)
	www.SendJSON(w, s.orchestrator.Snapshot())
}

func (s *Server) httpGetHistory(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	list := s.orchestrator.History()
	if n := wwwx.QueryInt(r, "limit"); n > 0 && n < len(list) {
		list = list[:n]
	}
	if list == nil {
		list = []history.Entry{}
	}
	wwwx.CacheNever(w)
	www.SendJSON(w, list)
}

func (s *Server) httpGetModel(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type modelJSON struct {
		Path   string          `json:"path"`
		State  nnrunner.State  `json:"state"`
		Error  string          `json:"error,omitempty"`
		Config *nn.ModelConfig `json:"config,omitempty"`
	}
	resp := modelJSON{
		Path:   s.model.Asset().Path,
		State:  s.model.State(),
		Config: s.model.Config(),
	}
	if err := s.model.Err(); err != nil {
		resp.Error = err.Error()
	}
	wwwx.CacheNever(w)
	www.SendJSON(w, &resp)
}

func (s *Server) httpGetStats(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type statsJSON struct {
		AverageMS map[perfstats.Stage]float64 `json:"averageMS"`
		TotalMS   float64                     `json:"totalMS"` // Moving average of the whole cycle
	}
	stats := s.orchestrator.Stats()
	resp := statsJSON{
		AverageMS: map[perfstats.Stage]float64{},
		TotalMS:   float64(stats.TotalNanoseconds.Load()) / 1e6,
	}
	for stage, d := range stats.Averages() {
		resp.AverageMS[stage] = float64(d.Nanoseconds()) / 1e6
	}
	www.SendJSON(w, &resp)
}

func (s *Server) httpSelect(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	result, err := s.orchestrator.Select(r.Context(), orchestrator.PermissionMediaLibrary, s.uploadPicker(w, r))
	s.sendCycle(w, result, err)
}

func (s *Server) httpCapture(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	result, err := s.orchestrator.Select(r.Context(), orchestrator.PermissionCamera, s.cameraPicker(w, r))
	s.sendCycle(w, result, err)
}

func (s *Server) httpRetry(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	result, err := s.orchestrator.RetryPredict(r.Context())
	s.sendCycle(w, result, err)
}

func (s *Server) httpClear(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.orchestrator.Clear()
	s.sendCycle(w, nil, nil)
}

// Stream a snapshot to the client every time the orchestrator state changes
func (s *Server) httpStateWebSocket(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("State websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	snapshots, unwatch := s.orchestrator.Watch()
	defer unwatch()

	// We don't expect any messages from the client, but we must read in order to notice when it goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := c.WriteJSON(&snap); err != nil {
				s.Log.Debugf("State websocket write failed: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}

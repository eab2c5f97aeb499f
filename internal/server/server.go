// Package server exposes completion reports over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/agenthands/kgcomplete/internal/core"
	"github.com/agenthands/kgcomplete/internal/core/model"
	"github.com/agenthands/kgcomplete/internal/core/summary"
	"github.com/agenthands/kgcomplete/internal/store"
)

const (
	defaultLimit    = 100
	shutdownTimeout = 5 * time.Second
)

// History lists runs stored by earlier processes.
type History interface {
	ListRuns(ctx context.Context, pair string) ([]store.RunRecord, error)
}

type Server struct {
	Gatherer prometheus.Gatherer
	// History backs /history; nil disables it.
	History History
	Logger  log.FieldLogger

	mu    sync.RWMutex
	runs  map[string]*core.Result
	order []string
}

func NewServer(gatherer prometheus.Gatherer, logger log.FieldLogger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Server{
		Gatherer: gatherer,
		Logger:   logger,
		runs:     make(map[string]*core.Result),
	}
}

// Publish makes res visible under its run id. Publishing the same run id
// again replaces the earlier result.
func (s *Server) Publish(res *core.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := res.Report.RunID
	if _, ok := s.runs[id]; !ok {
		s.order = append(s.order, id)
	}
	s.runs[id] = res
	s.Logger.WithFields(log.Fields{"run_id": id, "pair": res.Report.Pair}).Info("published run")
}

func (s *Server) lookup(id string) (*core.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.runs[id]
	return res, ok
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Health)
	r.GET("/runs", s.ListRuns)
	r.GET("/runs/:id", s.GetRun)
	r.GET("/runs/:id/stages/:stage", s.GetStage)
	if s.History != nil {
		r.GET("/history", s.ListHistory)
	}
	if s.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
// ready, if not nil, receives the bound address once the listener is up.
func (s *Server) Serve(ctx context.Context, addr string, ready chan<- net.Addr) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	hs := &http.Server{Handler: s.SetupRouter()}
	s.Logger.WithField("addr", ln.Addr().String()).Info("report server listening")
	if ready != nil {
		ready <- ln.Addr()
	}

	errc := make(chan error, 1)
	go func() {
		errc <- hs.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.Logger.Info("report server stopped")
	return nil
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type StageCount struct {
	Stage  core.Stage         `json:"stage"`
	Counts map[model.Side]int `json:"counts"`
}

type RunSummary struct {
	RunID      string       `json:"run_id"`
	Pair       string       `json:"pair"`
	Ratio      float64      `json:"ratio"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
	Stages     []StageCount `json:"stages"`
}

type RunDetail struct {
	RunSummary
	Triples  map[model.Side]int `json:"triples"`
	Rules    map[model.Side]int `json:"rules"`
	Rejected map[model.Side]int `json:"rejected_rules"`
}

func summarize(res *core.Result) RunSummary {
	rep := res.Report
	out := RunSummary{
		RunID:      rep.RunID,
		Pair:       rep.Pair,
		Ratio:      rep.Ratio,
		StartedAt:  rep.StartedAt,
		DurationMS: rep.Duration.Milliseconds(),
		Stages:     []StageCount{},
	}
	for _, st := range rep.Stages {
		counts := make(map[model.Side]int, len(model.Sides))
		for _, side := range model.Sides {
			counts[side] = st.Count(side)
		}
		out.Stages = append(out.Stages, StageCount{Stage: st.Stage, Counts: counts})
	}
	return out
}

func (s *Server) ListRuns(c *gin.Context) {
	s.mu.RLock()
	runs := make([]RunSummary, 0, len(s.order))
	for _, id := range s.order {
		runs = append(runs, summarize(s.runs[id]))
	}
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// ListHistory lists stored runs, optionally only those of ?pair.
func (s *Server) ListHistory(c *gin.Context) {
	runs, err := s.History.ListRuns(c.Request.Context(), c.Query("pair"))
	if err != nil {
		s.Logger.WithError(err).Error("failed to list run history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list history"})
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) GetRun(c *gin.Context) {
	res, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	detail := RunDetail{
		RunSummary: summarize(res),
		Triples:    map[model.Side]int{},
		Rules:      map[model.Side]int{},
		Rejected:   map[model.Side]int{},
	}
	for _, side := range model.Sides {
		g := res.Graph(side)
		detail.Triples[side] = g.Triples.Len()
		detail.Rules[side] = len(g.Rules)
		detail.Rejected[side] = len(res.Report.Rejected[side])
	}
	c.JSON(http.StatusOK, detail)
}

type TripleView struct {
	Head       model.EntityID   `json:"head"`
	Relation   model.RelationID `json:"relation"`
	Tail       model.EntityID   `json:"tail"`
	Text       string           `json:"text"`
	Confidence float64          `json:"confidence"`
}

type RuleView struct {
	Key        model.RuleKey `json:"key"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
}

type StageDetail struct {
	RunID   string       `json:"run_id"`
	Stage   core.Stage   `json:"stage"`
	Side    model.Side   `json:"side"`
	Total   int          `json:"total"`
	Triples []TripleView `json:"triples,omitempty"`
	Rules   []RuleView   `json:"rules,omitempty"`
}

// GetStage lists what a stage added to one side, sorted, at most ?limit
// entries (default 100). ?side defaults to tg.
func (s *Server) GetStage(c *gin.Context) {
	res, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	st := res.Report.Stage(core.Stage(c.Param("stage")))
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stage not found"})
		return
	}
	side := model.Side(c.DefaultQuery("side", string(model.Target)))
	if side != model.Source && side != model.Target {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be sr or tg"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	vocab := res.Graph(side).Vocab
	out := StageDetail{RunID: res.Report.RunID, Stage: st.Stage, Side: side, Total: st.Count(side)}
	if st.Triples != nil {
		confs := st.Triples[side]
		ts := confs.Triples()
		out.Triples = make([]TripleView, 0, min(limit, len(ts)))
		for _, t := range ts[:min(limit, len(ts))] {
			out.Triples = append(out.Triples, TripleView{
				Head:       t.Head,
				Relation:   t.Relation,
				Tail:       t.Tail,
				Text:       summary.FormatTriple(t, confs[t], vocab),
				Confidence: confs[t],
			})
		}
	} else {
		rs := st.Rules[side]
		out.Rules = make([]RuleView, 0, min(limit, len(rs)))
		for _, r := range rs[:min(limit, len(rs))] {
			out.Rules = append(out.Rules, RuleView{Key: r.Key(), Text: summary.FormatRule(r, vocab), Confidence: r.Confidence})
		}
	}
	c.JSON(http.StatusOK, out)
}

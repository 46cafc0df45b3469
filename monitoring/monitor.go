// Package monitoring turns a running simulation into a small HTTP server
// that reports progress and lets a user pause and continue the run.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/sarchlab/evsim/timing"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	sim        *timing.Simulator
	portNumber int

	registry *prometheus.Registry
	metrics  *Metrics

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
	url    string
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		registry: prometheus.NewRegistry(),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterSimulator registers the simulator to monitor and attaches the
// metrics hook to it.
func (m *Monitor) RegisterSimulator(s *timing.Simulator) {
	if m.sim != nil {
		panic("monitoring: simulator already registered")
	}

	m.sim = s
	m.metrics = NewMetrics(m.registry, s)
	s.AcceptHook(m.metrics)
}

// Metrics returns the metrics hook created by RegisterSimulator.
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// Registry returns the Prometheus registry served at /metrics.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the progress list.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the HTTP handler serving the monitor API.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseSimulator).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc("/api/continue", m.continueSimulator).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	return r
}

func (m *Monitor) listenAddress() string {
	if m.portNumber >= 1000 {
		return ":" + strconv.Itoa(m.portNumber)
	}

	return ":0"
}

// StartServer starts serving the monitor API in the background and returns
// the URL it listens on.
func (m *Monitor) StartServer() string {
	listener, err := net.Listen("tcp", m.listenAddress())
	dieOnErr(err)

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", m.url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			dieOnErr(err)
		}
	}()

	return m.url
}

// URL returns the address of the running server, or "" before StartServer.
func (m *Monitor) URL() string {
	return m.url
}

// OpenInBrowser opens the monitor URL in the default browser.
func (m *Monitor) OpenInBrowser() error {
	if m.url == "" {
		return fmt.Errorf("monitoring: server not started")
	}

	return browser.OpenURL(m.url + "/api/status")
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) simulatorOr503(w http.ResponseWriter) *timing.Simulator {
	if m.sim == nil {
		http.Error(w, "no simulator registered", http.StatusServiceUnavailable)
	}

	return m.sim
}

func (m *Monitor) pauseSimulator(w http.ResponseWriter, _ *http.Request) {
	s := m.simulatorOr503(w)
	if s == nil {
		return
	}

	s.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueSimulator(w http.ResponseWriter, _ *http.Request) {
	s := m.simulatorOr503(w)
	if s == nil {
		return
	}

	s.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now float64 `json:"now"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	s := m.simulatorOr503(w)
	if s == nil {
		return
	}

	writeJSON(w, nowRsp{Now: s.Now().Seconds()})
}

// Status is the simulator snapshot served at /api/status.
type Status struct {
	State          string
	Now            float64
	PendingEvents  int
	ExecutedEvents uint64
	Paused         bool
	StopTime       float64
	HasStopTime    bool
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	s := m.simulatorOr503(w)
	if s == nil {
		return
	}

	st := &Status{
		State:          s.State().String(),
		Now:            s.Now().Seconds(),
		PendingEvents:  s.PendingEvents(),
		ExecutedEvents: s.ExecutedEvents(),
		Paused:         s.IsPaused(),
	}

	if t, ok := s.StopTime(); ok {
		st.StopTime = t.Seconds()
		st.HasStopTime = true
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(st)
	serializer.SetMaxDepth(1)

	w.Header().Set("Content-Type", "application/json")
	dieOnErr(serializer.Serialize(w))
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressView, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

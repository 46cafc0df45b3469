package datarecording

import (
	"os"
	"strings"
	"time"
)

// RunInfoTable is the table RunInfoRecorder writes to.
const RunInfoTable = "run_info"

const wallTimeFormat = "2006-01-02 15:04:05.000000000"

// RunInfo is one property of a simulation run.
type RunInfo struct {
	Property string
	Value    string
}

// RunInfoRecorder records facts about a simulation run, such as when it
// started and the command that launched it.
type RunInfoRecorder struct {
	recorder DataRecorder
	entries  []RunInfo
}

// NewRunInfoRecorder creates the run_info table in recorder.
func NewRunInfoRecorder(recorder DataRecorder) *RunInfoRecorder {
	recorder.CreateTable(RunInfoTable, RunInfo{})

	return &RunInfoRecorder{recorder: recorder}
}

// Start records the start time, command line, and working directory.
func (r *RunInfoRecorder) Start() {
	r.Add("Start Time", time.Now().Format(wallTimeFormat))
	r.Add("Command", strings.Join(os.Args, " "))

	if wd, err := os.Getwd(); err == nil {
		r.Add("Working Directory", wd)
	}
}

// Add records an extra property.
func (r *RunInfoRecorder) Add(property, value string) {
	r.entries = append(r.entries, RunInfo{Property: property, Value: value})
}

// End writes the collected properties along with the end time and flushes.
func (r *RunInfoRecorder) End() {
	r.Add("End Time", time.Now().Format(wallTimeFormat))

	for _, entry := range r.entries {
		r.recorder.InsertData(RunInfoTable, entry)
	}

	r.entries = nil

	r.recorder.Flush()
}

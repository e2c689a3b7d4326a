package domain

import (
	"encoding/json"
	"time"
)

// RunOptions is the external trigger payload of one extraction run. All
// fields are optional; zero values mean "no restriction" and the default
// date window.
type RunOptions struct {
	Since   *time.Time
	Until   *time.Time
	Account string
	Dataset string
}

// ReportJob is one planned unit of extraction work: a (profile, table) pair
// with its resolved query and date window. Jobs are ephemeral; they exist
// only for the duration of a run.
type ReportJob struct {
	Account      *Account
	Profile      Profile
	Table        string
	Metrics      []string
	Dimensions   []string
	Filter       string
	DateFrom     string
	DateTo       string
	Antisampling bool
}

// JobStatus is the outcome of one job. The zero value means success; it
// marshals as the string "ok", a failure marshals as {"error": message}.
type JobStatus struct {
	Err string
}

func (s JobStatus) OK() bool {
	return s.Err == ""
}

func (s JobStatus) MarshalJSON() ([]byte, error) {
	if s.Err == "" {
		return json.Marshal("ok")
	}
	return json.Marshal(map[string]string{"error": s.Err})
}

// RunStatus maps account id -> profile name -> table name -> job outcome.
// A run always produces one, even on partial failure.
type RunStatus map[string]map[string]map[string]JobStatus

// Set records the outcome of one (account, profile, table) job.
func (r RunStatus) Set(accountID, profileName, table string, status JobStatus) {
	if r[accountID] == nil {
		r[accountID] = make(map[string]map[string]JobStatus)
	}
	if r[accountID][profileName] == nil {
		r[accountID][profileName] = make(map[string]JobStatus)
	}
	r[accountID][profileName][table] = status
}

// Get returns the recorded outcome of one job.
func (r RunStatus) Get(accountID, profileName, table string) (JobStatus, bool) {
	profiles, ok := r[accountID]
	if !ok {
		return JobStatus{}, false
	}
	tables, ok := profiles[profileName]
	if !ok {
		return JobStatus{}, false
	}
	status, ok := tables[table]
	return status, ok
}

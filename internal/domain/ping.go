package domain

import (
	"fmt"
	"strings"
	"time"
)

// PingTarget is an external endpoint told about weblog updates
// (e.g. a weblogUpdates XML-RPC service).
type PingTarget struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PingURL     string    `json:"ping_url"`
	AutoEnabled bool      `json:"auto_enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

// Weblog is the publisher whose content changes trigger pings.
type Weblog struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// AbsoluteURL returns the public URL of the weblog below the site's base URL.
func (w Weblog) AbsoluteURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/" + w.Handle + "/"
}

// Subject is what a ping target is told: which site changed and where to crawl it.
type Subject struct {
	Name string
	URL  string
}

// QueueEntry is one pending (target, weblog) ping obligation.
// Presence in the store means pending; there is no status column.
type QueueEntry struct {
	ID        string     `json:"id"`
	Target    PingTarget `json:"target"`
	Weblog    Weblog     `json:"weblog"`
	Attempts  int        `json:"attempts"`
	EntryTime time.Time  `json:"entry_time"`
}

// IncrementAttempts consumes one delivery attempt and returns the new count.
func (e *QueueEntry) IncrementAttempts() int {
	e.Attempts++
	return e.Attempts
}

func (e *QueueEntry) String() string {
	return fmt.Sprintf("entry %s (target=%s weblog=%s attempts=%d)",
		e.ID, e.Target.Name, e.Weblog.Handle, e.Attempts)
}

// Outcome is the per-entry result of one pass. Only logged and counted, never stored.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeRequeued
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRequeued:
		return "requeued"
	case OutcomeAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Policy is the processing configuration in force for a single pass.
// It is read fresh before every pass so operators can change it without a restart.
type Policy struct {
	Suspended   bool
	LogOnly     bool
	MaxAttempts int
	// BaseURL is the site's externally reachable address; empty means unresolved.
	BaseURL string
}

// CreatePingTargetRequest is the inbound payload for a new ping target.
type CreatePingTargetRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	PingURL     string `json:"ping_url" validate:"required,url"`
	AutoEnabled bool   `json:"auto_enabled"`
}

// CreateWeblogRequest is the inbound payload for a new weblog.
type CreateWeblogRequest struct {
	Handle string `json:"handle" validate:"required,alphanum,max=64"`
	Name   string `json:"name" validate:"required,max=255"`
}

// AddAutoPingRequest attaches a ping target to a weblog.
type AddAutoPingRequest struct {
	TargetID string `json:"target_id" validate:"required,uuid"`
}

// QueuePingRequest queues a single ping by hand.
type QueuePingRequest struct {
	TargetID string `json:"target_id" validate:"required,uuid"`
	WeblogID string `json:"weblog_id" validate:"required,uuid"`
}

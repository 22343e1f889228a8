package progress

import (
	"reflect"
	"sync"
	"time"
)

// Stage represents the current stage of a translation
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageParsing      Stage = "parsing"
	StageCollection   Stage = "collection"
	StagePlaylists    Stage = "playlists"
	StageWriting      Stage = "writing"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

// Event represents a progress event
type Event struct {
	Stage        Stage
	Progress     float64
	Message      string
	Timestamp    time.Time
	TrackDetails *TrackDetails
	Error        string
}

// TrackDetails contains information about the current track being translated
type TrackDetails struct {
	TrackNumber     int
	TotalTracks     int
	CurrentTrack    string
	ProcessedTracks int
}

// Tracker manages progress tracking
type Tracker struct {
	mu           sync.RWMutex
	stage        Stage
	progress     float64
	message      string
	trackDetails *TrackDetails
	err          error
	listeners    []func(Event)
}

// NewTracker creates a new Tracker instance
func NewTracker() *Tracker {
	return &Tracker{
		stage:     StageInitializing,
		listeners: make([]func(Event), 0),
	}
}

// AddListener adds a new progress event listener
func (pt *Tracker) AddListener(listener func(Event)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.listeners = append(pt.listeners, listener)
}

// RemoveListener removes a progress event listener
func (pt *Tracker) RemoveListener(listener func(Event)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	listenerPtr := reflect.ValueOf(listener).Pointer()
	for i := range pt.listeners {
		if reflect.ValueOf(pt.listeners[i]).Pointer() == listenerPtr {
			pt.listeners = append(pt.listeners[:i], pt.listeners[i+1:]...)
			break
		}
	}
}

// UpdateProgress updates the progress and notifies all listeners
func (pt *Tracker) UpdateProgress(stage Stage, progress float64, message string) {
	pt.mu.Lock()
	pt.stage = stage
	pt.progress = progress
	pt.message = message
	pt.mu.Unlock()

	pt.notifyListeners(Event{
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// UpdateTrackProgress updates track-specific progress
func (pt *Tracker) UpdateTrackProgress(trackNumber, totalTracks, processedTracks int, currentTrack string) {
	details := &TrackDetails{
		TrackNumber:     trackNumber,
		TotalTracks:     totalTracks,
		CurrentTrack:    currentTrack,
		ProcessedTracks: processedTracks,
	}

	pt.mu.Lock()
	pt.trackDetails = details
	if totalTracks > 0 {
		pt.progress = float64(processedTracks) / float64(totalTracks) * 100
	}
	event := Event{
		Stage:        pt.stage,
		Progress:     pt.progress,
		Message:      pt.message,
		Timestamp:    time.Now(),
		TrackDetails: details,
	}
	pt.mu.Unlock()

	pt.notifyListeners(event)
}

// SetError sets an error state and notifies all listeners
func (pt *Tracker) SetError(err error) {
	pt.mu.Lock()
	pt.stage = StageError
	pt.err = err
	progress := pt.progress
	pt.mu.Unlock()

	pt.notifyListeners(Event{
		Stage:     StageError,
		Progress:  progress,
		Message:   err.Error(),
		Timestamp: time.Now(),
		Error:     err.Error(),
	})
}

// notifyListeners sends an event to all registered listeners
func (pt *Tracker) notifyListeners(event Event) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	for _, listener := range pt.listeners {
		listener(event)
	}
}

// GetCurrentState returns the current progress state
func (pt *Tracker) GetCurrentState() Event {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	event := Event{
		Stage:        pt.stage,
		Progress:     pt.progress,
		Message:      pt.message,
		Timestamp:    time.Now(),
		TrackDetails: pt.trackDetails,
	}
	if pt.err != nil {
		event.Error = pt.err.Error()
	}
	return event
}

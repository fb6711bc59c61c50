// Package events publishes phonebook change notifications.
package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/model"
)

const (
	// Source identifies this service in every event.
	Source = "phonebook"

	// JSONDataContentType is the content type of Event.Data.
	JSONDataContentType = "application/json"
)

// Event types. The NATS subject is "<prefix>.<type>".
const (
	TypePersonCreated = "person.created"
	TypePersonUpdated = "person.updated"
	TypePersonDeleted = "person.deleted"
)

var (
	readEventRandom = rand.Read
	marshalPayload  = json.Marshal
)

// Event is the envelope published for every change.
type Event struct {
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Subject         string          `json:"subject"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// PersonData is the payload of person events. Deleted events carry only
// the id.
type PersonData struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Number   string `json:"number,omitempty"`
	Revision int64  `json:"revision,omitempty"`
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() error { return nil }

// PersonCreated builds the event for a newly stored record.
func PersonCreated(p model.Person) (Event, error) {
	return newPersonEvent(TypePersonCreated, PersonData{
		ID:       p.ID,
		Name:     p.Name,
		Number:   p.Number,
		Revision: p.Revision,
	})
}

// PersonUpdated builds the event for a record after an update.
func PersonUpdated(p model.Person) (Event, error) {
	return newPersonEvent(TypePersonUpdated, PersonData{
		ID:       p.ID,
		Name:     p.Name,
		Number:   p.Number,
		Revision: p.Revision,
	})
}

// PersonDeleted builds the event for a removed record.
func PersonDeleted(id string) (Event, error) {
	return newPersonEvent(TypePersonDeleted, PersonData{ID: id})
}

func newPersonEvent(eventType string, payload PersonData) (Event, error) {
	personID := strings.TrimSpace(payload.ID)
	if personID == "" {
		return Event{}, fmt.Errorf("person id is required")
	}

	eventID, err := newEventID()
	if err != nil {
		return Event{}, err
	}

	data, err := marshalPayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshaling %s payload: %w", eventType, err)
	}

	return Event{
		ID:              eventID,
		Source:          Source,
		Type:            eventType,
		Subject:         personID,
		Time:            time.Now().UTC(),
		DataContentType: JSONDataContentType,
		Data:            data,
	}, nil
}

func newEventID() (string, error) {
	var id [16]byte
	if _, err := readEventRandom(id[:]); err != nil {
		return "", fmt.Errorf("generating event id: %w", err)
	}
	return "evt-" + hex.EncodeToString(id[:]), nil
}

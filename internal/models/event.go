// Package models defines the records that flow through the pipeline:
// the raw webhook event, the API-enriched record, and the typed
// destination rows.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the kind of webhook the ERP delivered.
type EventType string

const (
	EventOrderCreated EventType = "order-created"
	EventPDVSale      EventType = "pdv-sale"
	EventProductQuery EventType = "product-query"
)

// RecordType classifies an enriched record and selects its
// destination table.
type RecordType string

const (
	RecordPDV      RecordType = "pdv"
	RecordPesquisa RecordType = "pesquisa"
	RecordProduto  RecordType = "produto"
)

// webhookTipoToEvent maps the ERP webhook "tipo" field to an event type.
var webhookTipoToEvent = map[string]EventType{
	"inclusao_pedido":  EventOrderCreated,
	"venda_pdv":        EventPDVSale,
	"consulta_produto": EventProductQuery,
}

// eventToRecord is the fixed classification table. The record type of
// an enrichment unit is never inferred from payload contents.
var eventToRecord = map[EventType]RecordType{
	EventOrderCreated: RecordPesquisa,
	EventPDVSale:      RecordPDV,
	EventProductQuery: RecordProduto,
}

// EventTypeForTipo resolves the webhook "tipo" field to an event type.
func EventTypeForTipo(tipo string) (EventType, bool) {
	et, ok := webhookTipoToEvent[tipo]
	return et, ok
}

// RecordTypeFor returns the destination classification for an event type.
func RecordTypeFor(et EventType) (RecordType, bool) {
	rt, ok := eventToRecord[et]
	return rt, ok
}

// ParseRecordType validates a record type string coming off the wire
// (object keys, notification subjects).
func ParseRecordType(s string) (RecordType, error) {
	switch RecordType(s) {
	case RecordPDV, RecordPesquisa, RecordProduto:
		return RecordType(s), nil
	}
	return "", fmt.Errorf("unknown record type %q", s)
}

// RawEvent is the untouched webhook payload as received. It is written
// once to the landing store and never mutated.
type RawEvent struct {
	SourceID   string          `json:"source_id"`
	EventType  EventType       `json:"event_type"`
	ReceivedAt time.Time       `json:"received_at"`
	Body       json.RawMessage `json:"body"`
}

// EnrichedRecord is a RawEvent expanded with ERP API lookup results.
// Exactly one is produced per API result unit; a single raw event may
// fan out to several records (order plus its line-item products).
type EnrichedRecord struct {
	SourceID   string          `json:"source_id"`
	RecordType RecordType      `json:"record_type"`
	RawRef     string          `json:"raw_ref"`
	Payload    json.RawMessage `json:"payload"`
	EnrichedAt time.Time       `json:"enriched_at"`

	// Checksum is the sha256 of Payload, recorded as object metadata
	// so downstream consumers can verify integrity.
	Checksum string `json:"checksum,omitempty"`
}

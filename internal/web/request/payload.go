// Package request parses inbound API documents into the payload form the
// mapping engine populates from.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/strata-api/strata/internal/resource"
)

// DefaultMaxBodySize caps request bodies at 10MB
const DefaultMaxBodySize = 10 << 20

// Document is a parsed inbound document: the primary data's type and id
// plus the payload handed to the populator.
type Document struct {
	Type    string
	ID      string
	Payload resource.Payload
}

// Parser parses inbound JSON:API documents
type Parser struct {
	maxBodySize int64
}

// NewParser creates a parser with the default body size limit
func NewParser() *Parser {
	return &Parser{maxBodySize: DefaultMaxBodySize}
}

// NewParserWithMaxSize creates a parser with a custom max body size
func NewParserWithMaxSize(maxBytes int64) *Parser {
	return &Parser{maxBodySize: maxBytes}
}

// ParseDocument reads and parses the request body into a Document.
// Relationship entries keep their payload declaration order, which the
// populate pipeline relies on when executing deferred writes.
func (p *Parser) ParseDocument(w http.ResponseWriter, r *http.Request) (*Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodySize)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}

	return ParseDocumentBytes(body)
}

// ParseDocumentBytes parses a raw document body
func ParseDocumentBytes(body []byte) (*Document, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := decodeStrict(body, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("document has no data member")
	}

	var data struct {
		Type          string                 `json:"type"`
		ID            string                 `json:"id"`
		Attributes    map[string]interface{} `json:"attributes"`
		Relationships json.RawMessage        `json:"relationships"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("invalid data member: %w", err)
	}

	doc := &Document{
		Type: data.Type,
		ID:   data.ID,
		Payload: resource.Payload{
			Attributes: data.Attributes,
		},
	}
	if doc.Payload.Attributes == nil {
		doc.Payload.Attributes = map[string]interface{}{}
	}

	if len(data.Relationships) > 0 && !bytes.Equal(bytes.TrimSpace(data.Relationships), []byte("null")) {
		relationships, err := parseRelationships(data.Relationships)
		if err != nil {
			return nil, err
		}
		doc.Payload.Relationships = relationships
	}

	return doc, nil
}

// parseRelationships walks the relationships object token by token so that
// entry order survives decoding. A plain map would lose it.
func parseRelationships(raw json.RawMessage) ([]resource.RelationshipPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid relationships member: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("relationships member must be an object")
	}

	var result []resource.RelationshipPayload
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid relationships member: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("relationships member must be an object")
		}

		var entry struct {
			Data json.RawMessage `json:"data"`
		}
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("invalid relationship %q: %w", name, err)
		}

		relPayload := resource.RelationshipPayload{Name: name}
		trimmed := bytes.TrimSpace(entry.Data)
		switch {
		case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
			// explicit null: clears a to-one relationship
		case trimmed[0] == '[':
			if err := json.Unmarshal(trimmed, &relPayload.Many); err != nil {
				return nil, fmt.Errorf("invalid relationship %q data: %w", name, err)
			}
			if relPayload.Many == nil {
				relPayload.Many = []resource.Identifier{}
			}
		case trimmed[0] == '{':
			var one resource.Identifier
			if err := json.Unmarshal(trimmed, &one); err != nil {
				return nil, fmt.Errorf("invalid relationship %q data: %w", name, err)
			}
			relPayload.One = &one
		default:
			return nil, fmt.Errorf("invalid relationship %q data", name)
		}

		result = append(result, relPayload)
	}

	return result, nil
}

// decodeStrict decodes JSON and rejects trailing garbage
func decodeStrict(body []byte, target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(target); err != nil {
		if err == io.EOF {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("request body contains multiple JSON objects")
	}
	return nil
}

package ledger

import (
	"strings"

	"obraflow-backend/internal/infrastructure/coreapi"
)

// Identity is the resolved owner of a project: either a registry client or a
// synthetic fallback built from whatever the project embeds.
type Identity struct {
	Key            string
	Name           string
	DocumentType   string
	DocumentNumber string
	Phone          string
	Email          string
	Synthetic      bool
}

// resolver attempts one matching strategy against the client directory.
// Resolvers are pure; the chain below evaluates them in order.
type resolver func(p coreapi.ProjectRecord, dir *directory) (Identity, bool)

// directory indexes the client registry for the resolver chain.
type directory struct {
	byID       map[string]coreapi.ClientRecord
	byDocument map[string]coreapi.ClientRecord
	byName     map[string]coreapi.ClientRecord
}

func newDirectory(clients []coreapi.ClientRecord) *directory {
	d := &directory{
		byID:       make(map[string]coreapi.ClientRecord, len(clients)),
		byDocument: make(map[string]coreapi.ClientRecord, len(clients)),
		byName:     make(map[string]coreapi.ClientRecord, len(clients)),
	}
	for _, c := range clients {
		if c.ID != "" {
			d.byID[c.ID] = c
		}
		if c.DocumentNumber != "" {
			d.byDocument[c.DocumentNumber] = c
		}
		if name := strings.ToLower(strings.TrimSpace(c.Name)); name != "" {
			// First registration wins on duplicate names.
			if _, ok := d.byName[name]; !ok {
				d.byName[name] = c
			}
		}
	}
	return d
}

func registered(c coreapi.ClientRecord) Identity {
	return Identity{
		Key:            "client:" + c.ID,
		Name:           c.Name,
		DocumentType:   c.DocumentType,
		DocumentNumber: c.DocumentNumber,
		Phone:          c.Phone,
		Email:          c.Email,
	}
}

func byExplicitID(p coreapi.ProjectRecord, dir *directory) (Identity, bool) {
	if p.Cliente.ID == "" {
		return Identity{}, false
	}
	c, ok := dir.byID[p.Cliente.ID]
	if !ok {
		return Identity{}, false
	}
	return registered(c), true
}

func byDocument(p coreapi.ProjectRecord, dir *directory) (Identity, bool) {
	if p.Cliente.DocumentNumber == "" {
		return Identity{}, false
	}
	c, ok := dir.byDocument[p.Cliente.DocumentNumber]
	if !ok {
		return Identity{}, false
	}
	return registered(c), true
}

func byName(p coreapi.ProjectRecord, dir *directory) (Identity, bool) {
	name := strings.ToLower(strings.TrimSpace(p.Cliente.Name))
	if name == "" {
		return Identity{}, false
	}
	c, ok := dir.byName[name]
	if !ok {
		return Identity{}, false
	}
	return registered(c), true
}

// byEmbeddedString builds a synthetic client from the project's embedded
// client string when the registry has no match.
func byEmbeddedString(p coreapi.ProjectRecord, _ *directory) (Identity, bool) {
	raw := strings.TrimSpace(p.Cliente.Raw)
	if raw == "" {
		return Identity{}, false
	}
	return Identity{
		Key:            "unregistered:" + strings.ToLower(raw),
		Name:           raw,
		DocumentNumber: "Not registered",
		Synthetic:      true,
	}, true
}

var resolverChain = []resolver{byExplicitID, byDocument, byName, byEmbeddedString}

// resolveClient runs the chain and, if everything misses, falls back to a
// synthetic identity keyed by the project id so no contract is ever dropped.
func resolveClient(p coreapi.ProjectRecord, dir *directory) Identity {
	for _, r := range resolverChain {
		if id, ok := r(p, dir); ok {
			return id
		}
	}
	return Identity{
		Key:            "project:" + string(p.ID),
		Name:           "Unknown client (project " + string(p.ID) + ")",
		DocumentNumber: "Not registered",
		Synthetic:      true,
	}
}

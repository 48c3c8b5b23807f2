package schema

import (
	"bytes"
	"container/list"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"DocBatch/internal/identifier"
	"DocBatch/internal/validation"
)

// DefaultCacheSize is the number of compiled schemas kept when none is configured.
const DefaultCacheSize = 256

// Engine evaluates documents against JSON schemas (draft-07).
// Compiled schemas are cached by reference and auxiliary documents; evaluation is
// stateless per call and safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	maxSize int                      // maxSize bounds the number of cached schemas
	order   *list.List               // order holds cache keys, most recently used first
	entries map[string]*list.Element // entries maps cache key to its order element
}

// cacheEntry is one compiled schema in the cache.
type cacheEntry struct {
	key    string
	schema *jsonschema.Schema
}

// NewEngine creates an engine caching at most cacheSize compiled schemas.
func NewEngine(cacheSize int) *Engine {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	return &Engine{
		maxSize: cacheSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Validate evaluates doc against the schema at ref. aux maps schema ids to additional
// documents used to resolve ref. Failed keywords are returned in the result; an
// unresolvable or invalid schema is a fault.
func (e *Engine) Validate(ref string, doc any, aux map[string]any) (*validation.Result, error) {
	auxData, err := encodeAux(aux)
	if err != nil {
		return nil, err
	}

	sch, err := e.compiled(ref, auxData)
	if err != nil {
		return nil, err
	}

	err = sch.Validate(Normalize(doc))
	if err == nil {
		return validation.NewResult(), nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("evaluate %s:\n%w", ref, err)
	}

	result := validation.NewResult()
	for _, leaf := range leaves(ve) {
		result.AddError(toSchemaError(leaf))
	}

	return result, nil
}

// CacheLen returns the number of cached compiled schemas.
func (e *Engine) CacheLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.Len()
}

// compiled returns the cached schema for (ref, aux) or compiles it.
func (e *Engine) compiled(ref string, auxData map[string][]byte) (*jsonschema.Schema, error) {
	key := cacheKey(ref, auxData)

	if sch := e.lookup(key); sch != nil {
		return sch, nil
	}

	sch, err := compile(ref, auxData)
	if err != nil {
		return nil, err
	}

	e.store(key, sch)

	return sch, nil
}

// lookup returns a cached schema and marks it recently used.
func (e *Engine) lookup(key string) *jsonschema.Schema {
	e.mu.Lock()
	defer e.mu.Unlock()

	el, ok := e.entries[key]
	if !ok {
		return nil
	}

	e.order.MoveToFront(el)

	return el.Value.(*cacheEntry).schema
}

// store inserts a compiled schema, evicting the least recently used one when full.
func (e *Engine) store(key string, sch *jsonschema.Schema) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if el, ok := e.entries[key]; ok {
		e.order.MoveToFront(el)
		return
	}

	e.entries[key] = e.order.PushFront(&cacheEntry{key: key, schema: sch})

	for e.order.Len() > e.maxSize {
		oldest := e.order.Back()
		e.order.Remove(oldest)
		delete(e.entries, oldest.Value.(*cacheEntry).key)
	}
}

// compile builds a schema for ref with every built-in and auxiliary document loaded.
func compile(ref string, auxData map[string][]byte) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	c.LoadURL = func(url string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("schema %s is not available", url)
	}

	for id := range builtin {
		data, err := Raw(id)
		if err != nil {
			return nil, err
		}

		if err := c.AddResource(id, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s:\n%w", id, err)
		}
	}

	for id, data := range auxData {
		if err := c.AddResource(id, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s:\n%w", id, err)
		}
	}

	sch, err := c.Compile(ref)
	if err != nil {
		return nil, fmt.Errorf("compile %s:\n%w", ref, err)
	}

	return sch, nil
}

// encodeAux encodes every auxiliary document to JSON.
func encodeAux(aux map[string]any) (map[string][]byte, error) {
	out := make(map[string][]byte, len(aux))
	for id, doc := range aux {
		data, err := json.Marshal(Normalize(doc))
		if err != nil {
			return nil, fmt.Errorf("encode schema %s:\n%w", id, err)
		}
		out[id] = data
	}
	return out, nil
}

// cacheKey derives a cache key from ref and the hash of the auxiliary documents.
func cacheKey(ref string, auxData map[string][]byte) string {
	if len(auxData) == 0 {
		return ref
	}

	ids := make([]string, 0, len(auxData))
	for id := range auxData {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([][]byte, 0, 2*len(ids))
	for _, id := range ids {
		parts = append(parts, []byte(id), auxData[id])
	}

	return ref + "|" + identifier.Hash(parts...).Hex()
}

// leaves flattens a validation error tree to its leaf causes.
func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}

	var out []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		out = append(out, leaves(cause)...)
	}
	return out
}

// toSchemaError converts one leaf cause to a validation error.
func toSchemaError(ve *jsonschema.ValidationError) *validation.SchemaError {
	keyword := ve.KeywordLocation
	if i := strings.LastIndexByte(keyword, '/'); i >= 0 {
		keyword = keyword[i+1:]
	}

	return &validation.SchemaError{
		Keyword:      keyword,
		InstancePath: ve.InstanceLocation,
		SchemaPath:   ve.AbsoluteKeywordLocation,
		Message:      ve.Message,
	}
}

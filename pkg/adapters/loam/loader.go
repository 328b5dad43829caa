package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/phasewise/pkg/graph"
	"github.com/aretw0/phasewise/pkg/schema"
	"github.com/mitchellh/mapstructure"
)

// Loader adapts a Loam repository of phase documents to ports.GraphSource.
//
// Every markdown, JSON or YAML document is one phase, except the document
// whose frontmatter has kind: graph, which carries the graph header.
type Loader struct {
	Repo *loam.TypedRepository[Metadata]
	name string
}

// New creates a Loam adapter. name is used when the repository has no graph header.
func New(repo *loam.TypedRepository[Metadata], name string) *Loader {
	return &Loader{Repo: repo, name: name}
}

// Open initializes a read-only, strict Loam repository at path.
func Open(path string) (*Loader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(abs,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[Metadata](repo), filepath.Base(abs)), nil
}

// Load assembles the graph definition from every document in the repository.
func (l *Loader) Load(ctx context.Context) (graph.Definition, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return graph.Definition{}, fmt.Errorf("loam list failed: %w", err)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	def := graph.Definition{Name: l.name}
	seen := make(map[string]string)
	headers := 0

	for _, doc := range docs {
		if kind, _ := doc.Data["kind"].(string); kind == KindGraph {
			headers++
			if headers > 1 {
				return graph.Definition{}, fmt.Errorf("more than one graph header document (found %s)", doc.ID)
			}
			var h GraphHeader
			if err := decode(doc.Data, &h); err != nil {
				return graph.Definition{}, fmt.Errorf("invalid graph header %s: %w", doc.ID, err)
			}
			if h.Name != "" {
				def.Name = h.Name
			}
			def.Description = h.Description
			if def.Description == "" {
				def.Description = strings.TrimSpace(doc.Content)
			}
			def.Entry = h.Entry
			def.Completion = h.Completion
			def.Conditions = h.Conditions
			continue
		}

		var p PhaseDocument
		if err := decode(doc.Data, &p); err != nil {
			return graph.Definition{}, fmt.Errorf("invalid phase document %s: %w", doc.ID, err)
		}

		id := p.ID
		if id == "" {
			id = doc.ID
		}
		p.ID = trimExtension(id)
		if existing, ok := seen[p.ID]; ok {
			return graph.Definition{}, fmt.Errorf("collision detected: phase '%s' is defined in both '%s' and '%s'", p.ID, existing, doc.ID)
		}
		seen[p.ID] = doc.ID

		if p.Description == "" {
			p.Description = strings.TrimSpace(doc.Content)
		}
		def.Phases = append(def.Phases, p.Phase)

		for _, e := range p.Edges {
			e.From = p.ID
			e.To = trimExtension(e.To)
			def.Edges = append(def.Edges, e)
		}
		if p.To != "" {
			def.Edges = append(def.Edges, graph.EdgeDefinition{From: p.ID, To: trimExtension(p.To)})
		}
	}
	return def, nil
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				// Loam debounces on its side; a pending signal already covers this change.
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

func decode(input Metadata, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			numberHook,
			schema.DecodeHook(),
			schemaObjectHook,
		),
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(input))
}

var (
	numberType = reflect.TypeOf(json.Number(""))
	schemaType = reflect.TypeOf(schema.Schema{})
)

// numberHook turns strict mode's json.Number into int64 or float64, so that
// untyped values such as condition thresholds stay numeric.
func numberHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from != numberType {
		return data, nil
	}
	n := data.(json.Number)
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	return n.Float64()
}

// schemaObjectHook decodes the mapping form of a schema through its JSON
// decoder so that type aliases are canonicalized the same way as in files.
func schemaObjectHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != schemaType || from.Kind() != reflect.Map {
		return data, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var s schema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}

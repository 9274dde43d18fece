package artifact

import (
	"github.com/roach88/golfkpi/internal/canon"
	"github.com/roach88/golfkpi/internal/kernel"
)

const entityTemplate = "template"

// Template is the typed form of a KPI template document. It is immutable
// once parsed; its identity is the hash of its canonical JSON.
type Template struct {
	SchemaVersion     string
	Club              string
	Metrics           map[MetricName]Threshold
	AggregationMethod string

	// CreatedAt is kept verbatim; reformatting it would change identity.
	CreatedAt string

	// Provenance is optional free-form JSON, nil when absent.
	Provenance canon.Value
}

// ParseTemplate validates a raw template document and returns its typed
// form. Validation runs in order: strict JSON parse, canonicalization, the
// structural schema, then threshold ordering and text normalization rules.
// Any failure is a *kernel.ValidationError.
func ParseTemplate(raw []byte) (*Template, error) {
	obj, _, err := prepare(entityTemplate, defTemplate, raw)
	if err != nil {
		return nil, err
	}

	d := &decoder{entity: entityTemplate}
	t := &Template{
		SchemaVersion:     d.str(obj, "schema_version", "schema_version"),
		Club:              d.str(obj, "club", "club"),
		AggregationMethod: d.str(obj, "aggregation_method", "aggregation_method"),
		CreatedAt:         d.str(obj, "created_at", "created_at"),
		Metrics:           make(map[MetricName]Threshold),
	}
	if p, ok := obj.Get("provenance"); ok {
		t.Provenance = p
	}

	metricsVal, _ := obj.Get("metrics")
	metrics := d.object(metricsVal, "metrics")
	for _, key := range metrics.SortedKeys() {
		field := fieldPath("metrics", key)
		m := d.object(metrics[key], field)
		th := Threshold{Direction: Direction(d.str(m, "direction", field+".direction"))}
		switch th.Direction {
		case HigherIsBetter:
			th.A = d.number(m, "a_min", field+".a_min")
			th.B = d.number(m, "b_min", field+".b_min")
		case LowerIsBetter:
			th.A = d.number(m, "a_max", field+".a_max")
			th.B = d.number(m, "b_max", field+".b_max")
		default:
			d.fail(field+".direction", "unknown direction %q", th.Direction)
		}
		t.Metrics[MetricName(key)] = th
	}
	if d.err != nil {
		return nil, d.err
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the rules the structural schema cannot express.
func (t *Template) Validate() error {
	if t.AggregationMethod != AggregationWorstMetric {
		return kernel.Validationf(entityTemplate, "aggregation_method", "unsupported aggregation method %q", t.AggregationMethod)
	}
	if t.Club == "" {
		return kernel.Validationf(entityTemplate, "club", "is required")
	}
	if !isNFC(t.Club) {
		return kernel.Validationf(entityTemplate, "club", "must be NFC normalized")
	}
	if len(t.Metrics) == 0 {
		return kernel.Validationf(entityTemplate, "metrics", "at least one metric is required")
	}
	if len(t.Metrics) != len(t.MetricOrder()) {
		return kernel.Validationf(entityTemplate, "metrics", "unknown metric name")
	}
	for _, name := range t.MetricOrder() {
		th := t.Metrics[name]
		switch th.Direction {
		case HigherIsBetter:
			if th.A < th.B {
				return kernel.Validationf(entityTemplate, fieldPath("metrics", string(name), "a_min"),
					"must be >= b_min (%v < %v)", th.A, th.B)
			}
		case LowerIsBetter:
			if th.A > th.B {
				return kernel.Validationf(entityTemplate, fieldPath("metrics", string(name), "a_max"),
					"must be <= b_max (%v > %v)", th.A, th.B)
			}
		default:
			return kernel.Validationf(entityTemplate, fieldPath("metrics", string(name), "direction"),
				"unknown direction %q", th.Direction)
		}
	}
	return nil
}

// MetricOrder returns the template's metrics in MetricNames order.
func (t *Template) MetricOrder() []MetricName {
	names := make([]MetricName, 0, len(t.Metrics))
	for _, name := range MetricNames {
		if _, ok := t.Metrics[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Threshold returns the grading rule for a metric.
func (t *Template) Threshold(name MetricName) (Threshold, bool) {
	th, ok := t.Metrics[name]
	return th, ok
}

// Value rebuilds the document from the typed fields. ParseTemplate followed
// by Value is lossless because the schema admits no other fields.
func (t *Template) Value() canon.Value {
	metrics := canon.Object{}
	for name, th := range t.Metrics {
		m := canon.Object{"direction": canon.String(th.Direction)}
		if th.Direction == LowerIsBetter {
			m["a_max"] = canon.Number(th.A)
			m["b_max"] = canon.Number(th.B)
		} else {
			m["a_min"] = canon.Number(th.A)
			m["b_min"] = canon.Number(th.B)
		}
		metrics[string(name)] = m
	}

	doc := canon.Object{
		"schema_version":     canon.String(t.SchemaVersion),
		"club":               canon.String(t.Club),
		"metrics":            metrics,
		"aggregation_method": canon.String(t.AggregationMethod),
		"created_at":         canon.String(t.CreatedAt),
	}
	if t.Provenance != nil {
		doc["provenance"] = t.Provenance
	}
	return doc
}

// Identity returns the template hash and the canonical bytes it was
// computed over.
func (t *Template) Identity() (hash string, canonical []byte, err error) {
	return canon.HashValue(t.Value())
}

// StoredTemplate is a template as read back from the store: the stored hash
// is authoritative and is never recomputed on read.
type StoredTemplate struct {
	Hash      string
	Canonical []byte
	Template  *Template
}

// DecodeStoredTemplate rebuilds the typed template from stored canonical
// bytes, trusting hash as given.
func DecodeStoredTemplate(hash string, canonical []byte) (*StoredTemplate, error) {
	t, err := ParseTemplate(canonical)
	if err != nil {
		return nil, err
	}
	return &StoredTemplate{Hash: hash, Canonical: canonical, Template: t}, nil
}

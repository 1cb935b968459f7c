package ook

// Field is one extracted value together with the spec that produced it.
type Field struct {
	Name    string
	Value   uint32
	Display Display
}

// DecodedFields is the ordered set of values extracted from one payload.
type DecodedFields []Field

func (d DecodedFields) Get(name string) (uint32, bool) {
	for _, f := range d {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// Map returns the fields as a flat name/value map.
func (d DecodedFields) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(d))
	for _, f := range d {
		m[f.Name] = f.Value
	}
	return m
}

// Record is what a successful decode produces: the protocol name and its fields.
type Record struct {
	Protocol string
	Fields   DecodedFields
}

// Sink receives records from decoders.
type Sink interface {
	Emit(Record)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Record)

func (f SinkFunc) Emit(r Record) { f(r) }

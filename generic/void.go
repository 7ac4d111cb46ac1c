package generic

// Void is a zero-size placeholder value, e.g. for set membership or Result of functions with no value.
type Void struct{}

func NewVoid() Void {
	return Void{}
}

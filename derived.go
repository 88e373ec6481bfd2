package nrblib

import "fmt"

// FunctionTag names the pixel function of a derived band.
type FunctionTag string

const (
	FunLog10     FunctionTag = "log10"
	FunMul       FunctionTag = "mul"
	FunDiv       FunctionTag = "div"
	FunDecibel   FunctionTag = "decibel"
	FunComposite FunctionTag = "identity-composite"
)

// SourceRef points at one physical raster band.
type SourceRef struct {
	Path        string
	Band        int
	NoData      *float64
	ScaleRatio  *float64
	ScaleOffset *float64
}

// DerivedBandSpec is one node of the acyclic derivation tree. A leaf node
// references a physical source band; an operator node applies its pixel
// function to the ordered operands in Args. The tree is never evaluated here,
// it is materialized as a VRT artifact and evaluated lazily by the reader.
type DerivedBandSpec struct {
	Fun         FunctionTag
	Source      *SourceRef
	Args        []*DerivedBandSpec
	Scale       *float64
	Offset      *float64
	ColorInterp string
}

// IsLeaf reports whether the node references a physical band directly.
func (s *DerivedBandSpec) IsLeaf() bool {
	return s != nil && s.Source != nil
}

// Validate checks operand counts over the whole tree.
func (s *DerivedBandSpec) Validate() error {
	if s == nil {
		return ErrOperandCount
	}
	if s.IsLeaf() {
		if s.Source.Path == "" {
			return fmt.Errorf("empty source path: %w", ErrOperandCount)
		}
		return nil
	}
	var want int
	switch s.Fun {
	case FunDecibel, FunLog10:
		want = 1
	case FunMul, FunDiv:
		want = 2
	case FunComposite:
		if len(s.Args) == 0 {
			return fmt.Errorf("%s needs at least one operand: %w", s.Fun, ErrOperandCount)
		}
		want = len(s.Args)
	default:
		return fmt.Errorf("unknown pixel function %q: %w", s.Fun, ErrOperandCount)
	}
	if len(s.Args) != want {
		return fmt.Errorf("%s needs %d operands, got %d: %w", s.Fun, want, len(s.Args), ErrOperandCount)
	}
	for _, a := range s.Args {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Source builds a leaf node referencing band 1 of a raster file.
func Source(path string) *DerivedBandSpec {
	return &DerivedBandSpec{Source: &SourceRef{Path: path, Band: 1}}
}

// SourceBand builds a leaf node referencing an explicit band.
func SourceBand(path string, band int) *DerivedBandSpec {
	return &DerivedBandSpec{Source: &SourceRef{Path: path, Band: band}}
}

// Decibel derives 10*log10(x); non-positive input propagates as nodata.
func Decibel(x *DerivedBandSpec) (*DerivedBandSpec, error) {
	if x == nil {
		return nil, fmt.Errorf("decibel: %w", ErrOperandCount)
	}
	return &DerivedBandSpec{Fun: FunDecibel, Args: []*DerivedBandSpec{x}}, nil
}

// Log10 derives scale*log10(x)+offset. With scale=10 and offset=0 it is
// numerically equivalent to Decibel but expressed through the generic scale
// mechanism.
func Log10(x *DerivedBandSpec, scale, offset float64) (*DerivedBandSpec, error) {
	if x == nil {
		return nil, fmt.Errorf("log10: %w", ErrOperandCount)
	}
	s := &DerivedBandSpec{Fun: FunLog10, Args: []*DerivedBandSpec{x}, Scale: &scale}
	if offset != 0 {
		s.Offset = &offset
	}
	return s, nil
}

// Mul derives the element-wise product of two operands, first operand first.
func Mul(a, b *DerivedBandSpec) (*DerivedBandSpec, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("mul: %w", ErrOperandCount)
	}
	return &DerivedBandSpec{Fun: FunMul, Args: []*DerivedBandSpec{a, b}}, nil
}

// Div derives the element-wise quotient numerator/denominator. Division by
// zero propagates as nodata, never as +-inf.
func Div(num, den *DerivedBandSpec) (*DerivedBandSpec, error) {
	if num == nil || den == nil {
		return nil, fmt.Errorf("div: %w", ErrOperandCount)
	}
	return &DerivedBandSpec{Fun: FunDiv, Args: []*DerivedBandSpec{num, den}}, nil
}

// SigmaNought chains the RTC sigma nought derivation: gamma0 * gammaSigmaRatio
// in linear scale, plus the log10-scaled variant of it.
func SigmaNought(gamma0, gsRatio string) (lin, logScaled *DerivedBandSpec, err error) {
	if lin, err = Mul(Source(gamma0), Source(gsRatio)); err != nil {
		return
	}
	logScaled, err = Log10(lin, 10, 0)
	return
}

// orderCoPolFirst reorders a polarization raster pair so that the
// co-polarized channel (VV or HH) comes first.
func orderCoPolFirst(infiles []string) ([]string, error) {
	if len(infiles) != 2 {
		return nil, fmt.Errorf("rgb composite needs 2 operands, got %d: %w", len(infiles), ErrOperandCount)
	}
	pols := make([]PolarizationTag, 2)
	for i, f := range infiles {
		pol, err := ParsePolarization(f)
		if err != nil {
			return nil, err
		}
		pols[i] = pol
	}
	if pols[0].IsCoPol() == pols[1].IsCoPol() {
		return nil, fmt.Errorf("%s/%s: %w", pols[0], pols[1], ErrAmbiguousPolarization)
	}
	if pols[1].IsCoPol() {
		return []string{infiles[1], infiles[0]}, nil
	}
	return infiles, nil
}

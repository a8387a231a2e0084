package parallel

import "golang.org/x/exp/constraints"

// Number is the set of types that [Sum] can add.
type Number interface {
	constraints.Integer | constraints.Float | constraints.Complex
}

// Sum is a [Fold] combine function that adds its operands.
func Sum[T Number](a, b T) (T, error) {
	return a + b, nil
}

// Max is a [Fold] combine function that keeps the greater operand.
func Max[T constraints.Ordered](a, b T) (T, error) {
	return max(a, b), nil
}

// Min is a [Fold] combine function that keeps the lesser operand.
func Min[T constraints.Ordered](a, b T) (T, error) {
	return min(a, b), nil
}

package determinism

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectOverlap(t *testing.T) {
	a := Rect{Center: Vec2{0, 0}, HalfW: 1, HalfH: 1}
	b := Rect{Center: Vec2{1.5, 0}, HalfW: 1, HalfH: 1}
	c := Rect{Center: Vec2{5, 5}, HalfW: 1, HalfH: 1}

	assert.True(t, RectOverlap(a, b))
	assert.False(t, RectOverlap(a, c))
}

func TestCircleOverlap(t *testing.T) {
	a := Circle{Center: Vec2{0, 0}, Radius: 1}
	b := Circle{Center: Vec2{1.5, 0}, Radius: 1}
	c := Circle{Center: Vec2{10, 0}, Radius: 1}

	assert.True(t, CircleOverlap(a, b))
	assert.False(t, CircleOverlap(a, c))
}

func TestCircleRectOverlap(t *testing.T) {
	r := Rect{Center: Vec2{0, 0}, HalfW: 1, HalfH: 1}
	inside := Circle{Center: Vec2{0, 0}, Radius: 0.1}
	touching := Circle{Center: Vec2{2, 0}, Radius: 1}
	outside := Circle{Center: Vec2{10, 10}, Radius: 1}

	assert.True(t, CircleRectOverlap(inside, r))
	assert.True(t, CircleRectOverlap(touching, r))
	assert.False(t, CircleRectOverlap(outside, r))
}

func TestReflect(t *testing.T) {
	v := Vec2{X: 1, Y: -1}
	n := Vec2{X: 0, Y: 1} // floor normal
	result := Reflect(v, n)
	assert.InDelta(t, 1.0, result.X, 1e-9)
	assert.InDelta(t, 1.0, result.Y, 1e-9)
}

func TestRotate(t *testing.T) {
	p := Vec2{X: 1, Y: 0}
	center := Vec2{X: 0, Y: 0}
	result := Rotate(p, center, math.Pi/2)
	assert.InDelta(t, 0.0, result.X, 1e-9)
	assert.InDelta(t, 1.0, result.Y, 1e-9)
}

package robotside

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"
)

func TestOpposite(t *testing.T) {
	test.That(t, Left.Opposite(), test.ShouldEqual, Right)
	test.That(t, Right.Opposite(), test.ShouldEqual, Left)
	test.That(t, Left.Opposite().Opposite(), test.ShouldEqual, Left)
	test.That(t, Left.Sign(), test.ShouldEqual, 1.)
	test.That(t, Right.Sign(), test.ShouldEqual, -1.)
}

func TestParseAndJSON(t *testing.T) {
	side, err := FromString("RIGHT")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, side, test.ShouldEqual, Right)

	_, err = FromString("middle")
	test.That(t, err, test.ShouldNotBeNil)

	out, err := json.Marshal(Left)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"left"`)

	var parsed RobotSide
	test.That(t, json.Unmarshal([]byte(`"right"`), &parsed), test.ShouldBeNil)
	test.That(t, parsed, test.ShouldEqual, Right)
}

func TestSideDependentList(t *testing.T) {
	l := NewSideDependentList("l", "r")
	test.That(t, l.Get(Left), test.ShouldEqual, "l")
	l.Set(Right, "rr")
	test.That(t, l.Get(Right), test.ShouldEqual, "rr")
	for _, side := range Values {
		test.That(t, l.Get(side), test.ShouldNotBeEmpty)
	}
}

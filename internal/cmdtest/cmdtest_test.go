package cmdtest

import (
	"testing"
)

func TestMain(m *testing.M) {
	Main(m)
}

func TestSkytoml(t *testing.T) {
	Run(t, "testdata/skytoml")
}

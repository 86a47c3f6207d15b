package human

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationParse(t *testing.T) {
	tests := []struct {
		in  string
		out time.Duration
	}{
		{in: "0s", out: 0},
		{in: "1.5s", out: 1500 * time.Millisecond},
		{in: "2m30s", out: 150 * time.Second},
		{in: "100ms", out: 100 * time.Millisecond},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			var d Duration
			if err := d.Set(test.in); err != nil {
				t.Fatal(err)
			}
			if time.Duration(d) != test.out {
				t.Errorf("duration mismatch: %v != %v", d, test.out)
			}
		})
	}
}

func TestDurationInvalid(t *testing.T) {
	var d Duration
	if err := d.Set("forever"); err == nil {
		t.Error("no error parsing an invalid duration")
	}
}

func TestDurationEncoding(t *testing.T) {
	type config struct {
		Timeout Duration `json:"timeout" yaml:"timeout"`
	}

	b, err := json.Marshal(config{Timeout: Duration(3 * time.Second)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"timeout":"3s"}` {
		t.Errorf("wrong json: %s", b)
	}

	var c config
	if err := yaml.Unmarshal([]byte("timeout: 250ms\n"), &c); err != nil {
		t.Fatal(err)
	}
	if c.Timeout != Duration(250*time.Millisecond) {
		t.Errorf("wrong duration decoded from yaml: %v", c.Timeout)
	}
}

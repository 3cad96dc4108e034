package models

import (
	"encoding/json"
	"testing"
)

func TestMoneyRoundsHalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"1.005":  "1.01",
		"-1.005": "-1.01",
		"2.004":  "2.00",
		"":       "0.00",
		" 7 ":    "7.00",
	}
	for in, want := range cases {
		got, err := ParseMoney(in)
		if err != nil {
			t.Fatalf("parse %q failed: %v", in, err)
		}
		if got.String() != want {
			t.Fatalf("parse %q want %s got %s", in, want, got.String())
		}
	}
	if _, err := ParseMoney("abc"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestMoneyJSON(t *testing.T) {
	var payload struct {
		Price Money `json:"price"`
		Fee   Money `json:"fee"`
	}
	if err := json.Unmarshal([]byte(`{"price":"12.345","fee":3.1}`), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Price.String() != "12.35" || payload.Fee.String() != "3.10" {
		t.Fatalf("unexpected values: %s %s", payload.Price, payload.Fee)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `{"price":"12.35","fee":"3.10"}` {
		t.Fatalf("unexpected json: %s", out)
	}
}

func TestMoneyHelpers(t *testing.T) {
	if got := MustMoney("19.99").MulInt(3).String(); got != "59.97" {
		t.Fatalf("mul want 59.97 got %s", got)
	}
	if got := MustMoney("-5").FloorZero().String(); got != "0.00" {
		t.Fatalf("floor want 0.00 got %s", got)
	}
}

func TestJSONScan(t *testing.T) {
	var j JSON
	if err := j.Scan(`{"color":"black"}`); err != nil {
		t.Fatalf("scan string failed: %v", err)
	}
	if j["color"] != "black" {
		t.Fatalf("unexpected json value: %v", j)
	}
	if err := j.Scan(nil); err != nil || len(j) != 0 {
		t.Fatalf("nil scan should reset, got=%v err=%v", j, err)
	}
	if err := j.Scan(42); err == nil {
		t.Fatalf("expected unsupported type error")
	}
	value, err := JSON{"size": "42mm"}.Value()
	if err != nil || value != `{"size":"42mm"}` {
		t.Fatalf("unexpected value: %v err=%v", value, err)
	}
}

package product

import "testing"

func TestParseCandidates(t *testing.T) {
	raw := "```json\n[{\"title\":\"Oreo Cookies\",\"price\":3.5,\"url\":\"https://shop.example/oreo\",\"image_url\":\"https://shop.example/oreo.jpg\"}]\n```"

	candidates, err := parseCandidates(raw)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	c := candidates[0]
	if c.Title != "Oreo Cookies" {
		t.Errorf("unexpected title %q", c.Title)
	}
	if c.Price == nil || *c.Price != 3.5 {
		t.Errorf("unexpected price %v", c.Price)
	}
	if c.CanonicalURL != "https://shop.example/oreo" {
		t.Errorf("unexpected url %q", c.CanonicalURL)
	}
}

func TestParseCandidatesNameAlias(t *testing.T) {
	candidates, err := parseCandidates(`[{"name":"Milk"}]`)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Title != "Milk" {
		t.Errorf("expected name alias accepted, got %+v", candidates)
	}
}

func TestParseCandidatesDropsInvalidFields(t *testing.T) {
	raw := `[
		{"title":"Bad Price","price":-2,"url":"ftp://nope.example","image_url":"not a url"},
		{"title":""},
		{"title":"Fine"}
	]`

	candidates, err := parseCandidates(raw)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	bad := candidates[0]
	if bad.Price != nil {
		t.Errorf("negative price should be dropped: %v", bad.Price)
	}
	if bad.CanonicalURL != "" || bad.ImageURL != "" {
		t.Errorf("non-http urls should be dropped: %+v", bad)
	}
}

func TestParseCandidatesWrappedObject(t *testing.T) {
	candidates, err := parseCandidates(`{"results":[{"title":"Bread"}]}`)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Title != "Bread" {
		t.Errorf("expected wrapped list accepted, got %+v", candidates)
	}
}

func TestParseCandidatesGarbage(t *testing.T) {
	if _, err := parseCandidates("sorry, I cannot help with that"); err == nil {
		t.Fatal("expected error for non-JSON output")
	}
}

func TestIsAbsoluteURL(t *testing.T) {
	cases := map[string]bool{
		"https://shop.example/a": true,
		"http://shop.example":    true,
		"ftp://shop.example":     false,
		"/relative/path":         false,
		"":                       false,
		"https://":               false,
	}
	for in, want := range cases {
		if got := isAbsoluteURL(in); got != want {
			t.Errorf("isAbsoluteURL(%q) = %v, want %v", in, got, want)
		}
	}
}

package database

import (
	"context"
	"testing"

	"egress-worker/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
)

func TestStaticRegistry_Lookup(t *testing.T) {
	t.Parallel()
	r := NewStaticRegistry([]*domain.AddressRecord{
		{ID: "7", IPv4: "10.0.0.5"},
		{ID: "9", IPv4: "10.0.0.9", IPv6: "2001:DB8:0::9"},
	})
	ctx := context.Background()

	tests := []struct {
		ip     string
		wantID string
	}{
		{ip: "10.0.0.5", wantID: "7"},
		{ip: "10.0.0.9", wantID: "9"},
		{ip: "2001:db8::9", wantID: "9"},
		{ip: "10.0.0.1", wantID: ""},
	}
	for _, tt := range tests {
		rec, err := r.Lookup(ctx, tt.ip)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", tt.ip, err)
		}
		if tt.wantID == "" {
			if rec != nil {
				t.Errorf("Lookup(%s) = %+v, want nil", tt.ip, rec)
			}
			continue
		}
		if rec == nil || rec.ID != tt.wantID {
			t.Errorf("Lookup(%s) = %+v, want id %s", tt.ip, rec, tt.wantID)
		}
	}

	rec, _ := r.Lookup(ctx, "10.0.0.9")
	if pair, ok := rec.PairOf("10.0.0.9"); !ok || pair != "2001:db8::9" {
		t.Errorf("pair = %q, %v; want canonical ipv6", pair, ok)
	}
}

func TestAddressDocument_ToRecord(t *testing.T) {
	t.Parallel()
	doc := &AddressDocument{EgressID: 7, IPv4: "10.0.0.5"}
	rec := doc.ToRecord()
	if rec.ID != "7" || rec.IPv4 != "10.0.0.5" || rec.Paired() {
		t.Errorf("record = %+v", rec)
	}
}

func TestAddressFilter(t *testing.T) {
	t.Parallel()
	f := AddressFilter("10.0.0.5")
	or, ok := f["$or"].([]bson.M)
	if !ok || len(or) != 2 {
		t.Fatalf("filter = %v", f)
	}
	if or[0]["ipv4"] != "10.0.0.5" || or[1]["ipv6"] != "10.0.0.5" {
		t.Errorf("filter = %v", f)
	}
}

func TestAddressFilter_Canonicalizes(t *testing.T) {
	t.Parallel()
	f := AddressFilter("2001:DB8:0::9")
	or := f["$or"].([]bson.M)
	if or[0]["ipv4"] != "2001:db8::9" || or[1]["ipv6"] != "2001:db8::9" {
		t.Errorf("filter = %v, want canonical address", f)
	}
}

func TestNewAddressDocument(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		rec      *domain.AddressRecord
		wantIPv6 string
		wantErr  bool
	}{
		{name: "canonicalizes", rec: &domain.AddressRecord{ID: "9", IPv4: "10.0.0.9", IPv6: "2001:DB8:0::9"}, wantIPv6: "2001:db8::9"},
		{name: "single stack", rec: &domain.AddressRecord{ID: "7", IPv4: "10.0.0.5"}},
		{name: "non numeric id", rec: &domain.AddressRecord{ID: "abc", IPv4: "10.0.0.5"}, wantErr: true},
		{name: "no address", rec: &domain.AddressRecord{ID: "7"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := NewAddressDocument(tt.rec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if doc.IPv6 != tt.wantIPv6 {
				t.Errorf("ipv6 = %q, want %q", doc.IPv6, tt.wantIPv6)
			}
			if got := doc.ToRecord(); got.ID != tt.rec.ID {
				t.Errorf("round trip id = %q, want %q", got.ID, tt.rec.ID)
			}
		})
	}
}

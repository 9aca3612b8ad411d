package stac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depowered/culvertvision/internal/core/domain"
)

func stacServer(t *testing.T, item string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ept/catalog.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"links":[
			{"rel":"root","href":"./catalog.json"},
			{"rel":"item","href":"./IA_FullState/IA_FullState.json"},
			{"rel":"item","href":"./MN_RainyLake_1_2020/MN_RainyLake_1_2020.json"},
			{"rel":"item","href":"./MN_RainyLake_1_2020_extra/MN_RainyLake_1_2020_extra.json"}
		]}`))
	})
	mux.HandleFunc("/ept/MN_RainyLake_1_2020/MN_RainyLake_1_2020.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(item))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve(t *testing.T) {
	srv := stacServer(t, `{
		"properties": {"proj:epsg": 6344},
		"assets": {"ept.json": {"href": "https://s3-us-west-2.amazonaws.com/usgs-lidar-public/MN_RainyLake_1_2020/ept.json"}}
	}`)
	c := New(srv.URL+"/ept/catalog.json", 5*time.Second)

	ept, err := c.Resolve(context.Background(), "MN_RainyLake_1_2020")
	require.NoError(t, err)
	assert.Equal(t, "MN_RainyLake_1_2020", ept.Workunit)
	assert.Equal(t, domain.EPSG(6344), ept.CRS)
	assert.Equal(t, "https://s3-us-west-2.amazonaws.com/usgs-lidar-public/MN_RainyLake_1_2020/ept.json", ept.EPTJSONURL)
}

func TestResolve_RelativeAssetHref(t *testing.T) {
	srv := stacServer(t, `{"properties":{"proj:epsg":26915},"assets":{"ept.json":{"href":"./ept.json"}}}`)
	c := New(srv.URL+"/ept/catalog.json", 5*time.Second)

	ept, err := c.Resolve(context.Background(), "MN_RainyLake_1_2020")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/ept/MN_RainyLake_1_2020/ept.json", ept.EPTJSONURL)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name     string
		item     string
		workunit string
		want     error
	}{
		{"no match", `{}`, "TX_Nowhere", domain.ErrNotFound},
		{"missing epsg", `{"properties":{},"assets":{"ept.json":{"href":"x"}}}`, "MN_RainyLake_1_2020", domain.ErrMalformedMetadata},
		{"missing asset", `{"properties":{"proj:epsg":6344},"assets":{}}`, "MN_RainyLake_1_2020", domain.ErrMalformedMetadata},
		{"not json", `<html>`, "MN_RainyLake_1_2020", domain.ErrMalformedMetadata},
		{"empty workunit", `{}`, "", domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := stacServer(t, tt.item)
			_, err := New(srv.URL+"/ept/catalog.json", 5*time.Second).Resolve(context.Background(), tt.workunit)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolve_Upstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL+"/catalog.json", 5*time.Second).Resolve(context.Background(), "wu")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	srv.Close()
	_, err = New(srv.URL+"/catalog.json", 5*time.Second).Resolve(context.Background(), "wu")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

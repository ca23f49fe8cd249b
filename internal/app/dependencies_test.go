package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/config"
)

func TestCartStoreSelection(t *testing.T) {
	d := &Dependencies{Config: &config.Config{CartStore: config.CartStorePostgres}}
	store, err := d.CartStore(context.Background())
	require.NoError(t, err)
	require.IsType(t, &cart.PGStore{}, store)

	d.Config.CartStore = config.CartStoreMongo
	_, err = d.CartStore(context.Background())
	require.Error(t, err)
}

func TestCloseRunsInReverse(t *testing.T) {
	var order []int
	d := &Dependencies{}
	for i := range 3 {
		d.closers = append(d.closers, func() { order = append(order, i) })
	}
	d.Close()
	d.Close()
	require.Equal(t, []int{2, 1, 0}, order)
}

func TestProbesOmitMongoWhenUnset(t *testing.T) {
	probes := (&Dependencies{}).Probes()
	require.Len(t, probes, 2)
	require.Equal(t, "postgres", probes[0].Name)
	require.Equal(t, "redis", probes[1].Name)
}

func TestTaskConnOpt(t *testing.T) {
	d := &Dependencies{Config: &config.Config{RedisURL: "redis://localhost:6379/2"}}
	_, err := d.TaskConnOpt()
	require.NoError(t, err)
}

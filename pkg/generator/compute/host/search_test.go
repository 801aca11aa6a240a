package host_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amr-9/keyhunter/pkg/generator"
	"github.com/Amr-9/keyhunter/pkg/generator/compute"
	"github.com/Amr-9/keyhunter/pkg/generator/compute/host"
	"github.com/Amr-9/keyhunter/pkg/generator/dispatch"
	"github.com/Amr-9/keyhunter/pkg/generator/scoring"
)

// search runs a short search seeded from a fresh key pair and returns the
// seed secret with the first discovery.
func search(t *testing.T, target generator.Target) (*big.Int, generator.Result) {
	t.Helper()

	seedKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	cfg := &generator.Config{
		Target:            target,
		Mode:              scoring.NewZeros(),
		LocalWorkSize:     64,
		InverseSize:       4,
		InverseMultiplier: 64,
	}
	copy(cfg.PublicKey[:], crypto.FromECDSAPub(&seedKey.PublicKey)[1:])

	backend := host.New(1, 2)
	devs, err := backend.Open([]int{0}, compute.ProgramOptions{
		InverseSize: cfg.InverseSize,
		MaxScore:    cfg.MaxScore(),
	})
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	results := make(chan generator.Result, 64)
	d := dispatch.New(cfg,
		dispatch.WithLogger(log),
		dispatch.WithResultHandler(func(r generator.Result) { results <- r }),
	)
	defer d.Close()
	require.NoError(t, d.AddDevice(devs[0]))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, d.Init(ctx))

	runCtx, stop := context.WithCancel(ctx)
	errc := make(chan error, 1)
	go func() { errc <- d.Run(runCtx) }()

	var r generator.Result
	select {
	case r = <-results:
	case <-ctx.Done():
		t.Fatal("no discovery reported")
	}
	stop()
	require.NoError(t, <-errc)

	return seedKey.D, r
}

// combine adds the reported offset to the seed secret.
func combine(t *testing.T, secret *big.Int, offset string) []byte {
	t.Helper()

	k, ok := new(big.Int).SetString(offset, 16)
	require.True(t, ok, "offset %q is not hex", offset)

	sum := new(big.Int).Add(secret, k)
	sum.Mod(sum, crypto.S256().Params().N)
	return sum.FillBytes(make([]byte, 32))
}

func TestSearchFindsMatchingAddress(t *testing.T) {
	secret, r := search(t, generator.Address)
	require.Len(t, r.PrivateKey, 64)

	key, err := crypto.ToECDSA(combine(t, secret, r.PrivateKey))
	require.NoError(t, err)

	addr := crypto.PubkeyToAddress(key.PublicKey)
	assert.Equal(t, addr.Hex(), r.Address)
	assert.Equal(t, [20]byte(addr), r.Hash)

	score, err := scoring.NewZeros().Score(&r.Hash)
	require.NoError(t, err)
	assert.Equal(t, score, r.Score)
	assert.Positive(t, r.Score)
}

func TestSearchFindsMatchingContract(t *testing.T) {
	secret, r := search(t, generator.Contract)

	key, err := crypto.ToECDSA(combine(t, secret, r.PrivateKey))
	require.NoError(t, err)

	contract := crypto.CreateAddress(crypto.PubkeyToAddress(key.PublicKey), 0)
	assert.Equal(t, contract.Hex(), r.Address)

	score, err := scoring.NewZeros().Score(&r.Hash)
	require.NoError(t, err)
	assert.Equal(t, score, r.Score)
}

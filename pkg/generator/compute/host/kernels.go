package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Amr-9/keyhunter/pkg/generator/compute"
	"github.com/Amr-9/keyhunter/pkg/generator/ethereum"
	"github.com/Amr-9/keyhunter/pkg/generator/scoring"
)

type kernelFunc func(d *device, args []any, r compute.Range) error

var kernels = map[string]kernelFunc{
	compute.KernelInit:              runInit,
	compute.KernelInverse:           runInverse,
	compute.KernelIterate:           runIterate,
	compute.KernelTransformContract: runTransformContract,
}

var errNotIterated = errors.New("candidate hashes missing, profanity_iterate has not run")

// minChunk keeps tiny ranges from spawning a goroutine per candidate.
const minChunk = 64

// parallel calls fn over disjoint sub-ranges of r.
func (d *device) parallel(r compute.Range, fn func(lo, hi int) error) error {
	var g errgroup.Group
	g.SetLimit(d.workers)

	end := r.Offset + r.Global
	chunk := max((r.Global+d.workers*4-1)/(d.workers*4), minChunk)
	for lo := r.Offset; lo < end; lo += chunk {
		lo := lo
		hi := min(lo+chunk, end)
		g.Go(func() error { return fn(lo, hi) })
	}
	return g.Wait()
}

func bufferArg(args []any, i int) (*buffer, error) {
	if i < len(args) {
		if b, ok := args[i].(*buffer); ok && b.size > 0 {
			return b, nil
		}
	}
	return nil, fmt.Errorf("argument %d is not a buffer", i)
}

func ulong4Arg(args []any, i int) (compute.Ulong4, error) {
	if i < len(args) {
		if v, ok := args[i].(compute.Ulong4); ok {
			return v, nil
		}
	}
	return compute.Ulong4{}, fmt.Errorf("argument %d is not a ulong4", i)
}

func checkRange(r compute.Range, elements int) error {
	if r.Offset+r.Global > elements {
		return fmt.Errorf("range [%d, %d) exceeds %d candidates", r.Offset, r.Offset+r.Global, elements)
	}
	return nil
}

// runInit sets candidate id to seedPoint + key(seed, 1, id) * G. Each
// iteration adds G before hashing, so the hash read back after round R
// belongs to key(seed, R, id).
func runInit(d *device, args []any, r compute.Range) error {
	precomp, err := bufferArg(args, compute.ArgInitPrecomp)
	if err != nil {
		return err
	}
	deltaX, err := bufferArg(args, compute.ArgInitDeltaX)
	if err != nil {
		return err
	}
	if _, err := bufferArg(args, compute.ArgInitPrevLambda); err != nil {
		return err
	}
	result, err := bufferArg(args, compute.ArgInitResult)
	if err != nil {
		return err
	}
	seed, err := ulong4Arg(args, compute.ArgInitSeed)
	if err != nil {
		return err
	}
	seedX, err := ulong4Arg(args, compute.ArgInitSeedX)
	if err != nil {
		return err
	}
	seedY, err := ulong4Arg(args, compute.ArgInitSeedY)
	if err != nil {
		return err
	}

	if err := checkRange(r, deltaX.elements()); err != nil {
		return err
	}
	table, err := precomp.precompTable()
	if err != nil {
		return err
	}
	if deltaX.points == nil {
		deltaX.points = make([]btcec.JacobianPoint, deltaX.elements())
	}
	if r.Offset == 0 {
		clear(result.bytes())
	}

	var base btcec.JacobianPoint
	x, y := seedX.Bytes(), seedY.Bytes()
	base.X.SetBytes(&x)
	base.Y.SetBytes(&y)
	base.Z.SetInt(1)

	return d.parallel(r, func(lo, hi int) error {
		var p, sum btcec.JacobianPoint
		for id := lo; id < hi; id++ {
			k := seed.Offset(1, uint32(id)).Bytes()

			p = base
			for w := 0; w < ethereum.TableWindows; w++ {
				if v := k[31-w]; v != 0 {
					btcec.AddNonConst(&p, &table[ethereum.TableIndex(w, v)], &sum)
					p = sum
				}
			}
			deltaX.points[id] = p
		}
		return nil
	})
}

// precompTable parses the table once per buffer.
func (b *buffer) precompTable() ([]btcec.JacobianPoint, error) {
	if b.table != nil {
		return b.table, nil
	}
	data := b.bytes()
	if len(data) < ethereum.TableSize {
		return nil, fmt.Errorf("precompute table has %d bytes, want %d", len(data), ethereum.TableSize)
	}

	b.table = make([]btcec.JacobianPoint, ethereum.TablePoints)
	for i := range b.table {
		b.table[i] = ethereum.ReadPoint(data[i*ethereum.PointSize:])
	}
	return b.table, nil
}

// runInverse exists for launch parity; the host iterate kernel normalizes
// each point itself.
func runInverse(d *device, args []any, r compute.Range) error {
	deltaX, err := bufferArg(args, compute.ArgInverseDeltaX)
	if err != nil {
		return err
	}
	if _, err := bufferArg(args, compute.ArgInverseInverse); err != nil {
		return err
	}
	if deltaX.points == nil {
		return errors.New("candidates not initialized")
	}
	return checkRange(compute.Range{Global: r.Global * max(d.opts.InverseSize, 1)}, len(deltaX.points))
}

// runIterate advances every candidate by G and stores its account hash.
func runIterate(d *device, args []any, r compute.Range) error {
	deltaX, err := bufferArg(args, compute.ArgIterateDeltaX)
	if err != nil {
		return err
	}
	inverse, err := bufferArg(args, compute.ArgIterateInverse)
	if err != nil {
		return err
	}
	if _, err := bufferArg(args, compute.ArgIteratePrevLambda); err != nil {
		return err
	}
	if deltaX.points == nil {
		return errors.New("candidates not initialized")
	}
	if err := checkRange(r, len(deltaX.points)); err != nil {
		return err
	}
	if inverse.hashes == nil {
		inverse.hashes = make([][20]byte, inverse.elements())
	}

	return d.parallel(r, func(lo, hi int) error {
		var next btcec.JacobianPoint
		for id := lo; id < hi; id++ {
			btcec.AddNonConst(&deltaX.points[id], &d.g, &next)
			deltaX.points[id] = next
			inverse.hashes[id] = ethereum.PublicKeyHash(&next)
		}
		return nil
	})
}

// runTransformContract replaces each account hash with the address of the
// account's first contract.
func runTransformContract(d *device, args []any, r compute.Range) error {
	inverse, err := bufferArg(args, compute.ArgTransformInverse)
	if err != nil {
		return err
	}
	if inverse.hashes == nil {
		return errNotIterated
	}
	if err := checkRange(r, len(inverse.hashes)); err != nil {
		return err
	}

	return d.parallel(r, func(lo, hi int) error {
		for id := lo; id < hi; id++ {
			inverse.hashes[id] = ethereum.ContractAddress(inverse.hashes[id], 0)
		}
		return nil
	})
}

// scoreKernel records, per score, the first candidate scoring above scoreMax.
func scoreKernel(score scoring.ScoreFunc) kernelFunc {
	return func(d *device, args []any, r compute.Range) error {
		inverse, err := bufferArg(args, compute.ArgScoreInverse)
		if err != nil {
			return err
		}
		result, err := bufferArg(args, compute.ArgScoreResult)
		if err != nil {
			return err
		}
		data1, err := bufferArg(args, compute.ArgScoreData1)
		if err != nil {
			return err
		}
		data2, err := bufferArg(args, compute.ArgScoreData2)
		if err != nil {
			return err
		}
		ok := false
		var scoreMax uint8
		if len(args) > compute.ArgScoreMax {
			scoreMax, ok = args[compute.ArgScoreMax].(uint8)
		}
		if !ok {
			return fmt.Errorf("argument %d is not a uchar", compute.ArgScoreMax)
		}
		if inverse.hashes == nil {
			return errNotIterated
		}
		if err := checkRange(r, len(inverse.hashes)); err != nil {
			return err
		}

		var d1, d2 scoring.Data
		copy(d1[:], data1.bytes())
		copy(d2[:], data2.bytes())

		slots := result.bytes()
		top := len(slots)/compute.HashResultSize - 1
		if d.opts.MaxScore > 0 {
			top = min(top, d.opts.MaxScore)
		}

		var mu sync.Mutex
		return d.parallel(r, func(lo, hi int) error {
			for id := lo; id < hi; id++ {
				s := score(&inverse.hashes[id], &d1, &d2)
				if s <= int(scoreMax) {
					continue
				}
				s = min(s, top)

				mu.Lock()
				writeSlot(slots[s*compute.HashResultSize:], uint32(id), inverse.hashes[id])
				mu.Unlock()
			}
			return nil
		})
	}
}

// writeSlot keeps the first candidate to reach a score.
func writeSlot(p []byte, id uint32, hash [20]byte) {
	r := compute.DecodeResults(p[:compute.HashResultSize])[0]
	if r.Found == 0 {
		r.FoundID = id
		r.FoundHash = hash
	}
	r.Found++
	r.Encode(p)
}

// bench-snapshot measures accumulator memory and snapshot encoding cost for
// synthetic value streams, with and without LZ4 compression.
//
// Usage:
//
//	go run ./scripts/bench-snapshot --count 1000000 --class numeral \
//	  --profile-dir docs/profiles/snapshot
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sveljko/pgmedian/pkg/ordbuf"
)

const textValueLen = 24

func main() {
	count := flag.Int("count", 1_000_000, "Number of values to accumulate")
	class := flag.String("class", "numeral", "Value class (numeral, text)")
	seed := flag.Int64("seed", 1, "RNG seed for the synthetic stream")
	profileDir := flag.String("profile-dir", "", "Directory to write a heap profile (optional)")

	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	buf := ordbuf.New()

	if err := buf.Reserve(*count); err != nil {
		log.Fatalf("reserve: %v", err)
	}

	start := time.Now()

	switch *class {
	case "numeral":
		for range *count {
			if err := buf.Insert(ordbuf.Numeral(rng.Int63()), ""); err != nil {
				log.Fatalf("insert: %v", err)
			}
		}
	case "text":
		raw := make([]byte, textValueLen)

		for range *count {
			for i := range raw {
				raw[i] = byte('a' + rng.Intn(26))
			}

			if err := buf.Insert(ordbuf.TextBytes(raw), ""); err != nil {
				log.Fatalf("insert: %v", err)
			}
		}
	default:
		log.Fatalf("unknown class %q", *class)
	}

	insertDur := time.Since(start)

	var memStats runtime.MemStats

	runtime.GC()
	runtime.ReadMemStats(&memStats)

	plain, plainDur := encode(buf, false)
	compressed, lz4Dur := encode(buf, true)

	fmt.Printf("values:            %d (%s)\n", buf.Len(), *class)
	fmt.Printf("insert time:       %v\n", insertDur)
	fmt.Printf("heap alloc:        %s\n", humanize.Bytes(memStats.HeapAlloc))
	fmt.Printf("snapshot plain:    %s in %v\n", humanize.Bytes(uint64(plain)), plainDur)
	fmt.Printf("snapshot lz4:      %s in %v\n", humanize.Bytes(uint64(compressed)), lz4Dur)
	fmt.Printf("compression ratio: %.2f\n", float64(plain)/float64(compressed))

	if *profileDir != "" {
		writeHeapProfile(*profileDir)
	}
}

func encode(buf *ordbuf.Buffer, compress bool) (int, time.Duration) {
	var sink bytes.Buffer

	start := time.Now()

	if err := buf.Snapshot(&sink, compress); err != nil {
		log.Fatalf("snapshot: %v", err)
	}

	return sink.Len(), time.Since(start)
}

func writeHeapProfile(dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("mkdir profile-dir: %v", err)
	}

	path := filepath.Join(dir, "heap.prof")

	file, err := os.Create(path)
	if err != nil {
		log.Fatalf("create heap profile: %v", err)
	}
	defer file.Close()

	runtime.GC()

	if err := pprof.WriteHeapProfile(file); err != nil {
		log.Fatalf("write heap profile: %v", err)
	}

	log.Printf("heap profile written to %s", path)
}

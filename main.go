// adapar describes a set of files as the layers of an OCI image manifest,
// hashing them in parallel when the measured cost of parallel work says it is
// worth it.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"
	"github.com/spf13/pflag"

	"github.com/featherbread/adapar/internal/costprofile"
	"github.com/featherbread/adapar/internal/image"
	"github.com/featherbread/adapar/internal/log"
	"github.com/featherbread/adapar/internal/parallel"
	"github.com/featherbread/adapar/internal/pool"
)

var (
	flagWorkers  = pflag.IntP("workers", "w", runtime.GOMAXPROCS(0), "Number of pool workers")
	flagMinChunk = pflag.Int("min-chunk", 1, "Minimum number of files claimed by a worker at once")
	flagProfile  = pflag.Bool("profile", false, "Print the cost profile of the pool and exit")
	flagEstimate = pflag.Bool("estimate", false, "Estimate the cost profile instead of measuring it")
	flagPlatform = pflag.String("platform", "", "Wrap the manifest in an index for this platform (like linux/amd64)")
	flagRef      = pflag.String("ref", "", "Annotate the index entry with the tag of this image reference")
	flagVerbose  = pflag.BoolP("verbose", "v", false, "Enable verbose logging")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] FILE...\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *flagVerbose {
		log.EnableVerbose()
	}
	if *flagWorkers < 1 {
		log.Printf("[adapar] --workers must be at least 1")
		os.Exit(2)
	}

	p := pool.New(*flagWorkers)
	defer p.Close()

	e, err := newEngine(p)
	if err != nil {
		log.Printf("[adapar] %v", err)
		os.Exit(1)
	}
	if *flagProfile {
		fmt.Println(e.Profile())
		return
	}

	paths := lo.Uniq(pflag.Args())
	if len(paths) == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	failed := false
	descs, err := image.DescribeFiles(e, paths, image.LayerMediaType)
	if err != nil {
		failed = true
		for _, elemErr := range parallel.ElementErrors(err) {
			log.Printf("[adapar] %s: %v", paths[elemErr.Index], elemErr.Err)
		}
	}
	warnDuplicates(paths, lo.Map(descs, func(desc v1.Descriptor, _ int) digest.Digest { return desc.Digest }))

	m, err := image.BuildManifest(e, descs)
	if err != nil {
		log.Printf("[adapar] building manifest: %v", err)
		os.Exit(1)
	}

	var output any = m
	if *flagPlatform != "" || *flagRef != "" {
		idx, err := image.NewIndex(m, *flagPlatform, *flagRef)
		if err != nil {
			log.Printf("[adapar] building index: %v", err)
			os.Exit(1)
		}
		output = idx
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		log.Printf("[adapar] %v", err)
		os.Exit(1)
	}

	log.Verbosef("[adapar] pool stats: %+v", p.Stats())
	if failed {
		os.Exit(1)
	}
}

func newEngine(p *pool.Pool) (*parallel.Engine, error) {
	opts := []parallel.Option{parallel.WithMinChunk(*flagMinChunk)}
	if *flagEstimate {
		return parallel.NewWithProfile(p, costprofile.Estimate(), opts...), nil
	}
	return parallel.New(p, opts...)
}

// warnDuplicates logs every group of distinct paths whose contents share a
// digest, since they will appear as separate layers with identical blobs.
func warnDuplicates(paths []string, digests []digest.Digest) {
	seen := make(map[digest.Digest]mapset.Set[string])
	for i, d := range digests {
		if d == "" {
			continue
		}
		if seen[d] == nil {
			seen[d] = mapset.NewThreadUnsafeSet[string]()
		}
		seen[d].Add(paths[i])
	}
	for d, set := range seen {
		if set.Cardinality() > 1 {
			log.Printf("[adapar] %d files share digest %s: %v", set.Cardinality(), d, set.ToSlice())
		}
	}
}

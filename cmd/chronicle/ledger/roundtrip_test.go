package ledgercmder_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	ledgercmder "github.com/papercomputeco/chronicle/cmd/chronicle/ledger"
	"github.com/papercomputeco/chronicle/pkg/ledger"
	"github.com/papercomputeco/chronicle/pkg/ledger/inmemory"
	"github.com/papercomputeco/chronicle/pkg/ledger/sqlite"
	"github.com/papercomputeco/chronicle/pkg/record"
)

var _ = Describe("Export and import commands", func() {
	var (
		tmpDir string
		dbPath string
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "chronicle-ledger-cmd-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = os.RemoveAll(tmpDir)
		})

		dbPath = filepath.Join(tmpDir, "chronicle.sqlite")
		ctx = context.Background()
	})

	writeNDJSON := func(path string) int {
		led := inmemory.New()
		for i, this := range []string{"first clash", "second clash"} {
			_, err := led.Append(ctx, &record.Record{
				EntityType: "battle",
				TraceID:    "t1",
				This:       this,
				Did:        record.Did{Actor: "sparky", Action: "battle"},
				When:       record.When{StartedAt: time.Now().UTC().Add(time.Duration(i) * time.Second)},
				Status:     record.Status{State: record.StateCompleted, Result: record.ResultOK},
			})
			Expect(err).NotTo(HaveOccurred())
		}

		var buf bytes.Buffer
		n, err := ledger.Export(ctx, led, &buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(path, buf.Bytes(), 0o644)).To(Succeed())
		return n
	}

	It("imports a file into a fresh sqlite ledger", func() {
		inputPath := filepath.Join(tmpDir, "records.ndjson")
		n := writeNDJSON(inputPath)
		Expect(n).To(Equal(2))

		cmd := ledgercmder.NewImportCmd()
		cmd.SetArgs([]string{"--sqlite", dbPath, inputPath})
		Expect(cmd.Execute()).To(Succeed())

		led, err := sqlite.New(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer led.Close()

		stats, err := led.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Total).To(Equal(2))
	})

	It("exports the sqlite ledger to a file", func() {
		inputPath := filepath.Join(tmpDir, "records.ndjson")
		writeNDJSON(inputPath)

		importCmd := ledgercmder.NewImportCmd()
		importCmd.SetArgs([]string{"--sqlite", dbPath, inputPath})
		Expect(importCmd.Execute()).To(Succeed())

		outPath := filepath.Join(tmpDir, "out.ndjson")
		exportCmd := ledgercmder.NewExportCmd()
		exportCmd.SetArgs([]string{"--sqlite", dbPath, "--output", outPath})
		Expect(exportCmd.Execute()).To(Succeed())

		data, err := os.ReadFile(outPath)
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		Expect(lines).To(HaveLen(2))
	})
})

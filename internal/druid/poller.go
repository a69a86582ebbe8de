// File path: internal/druid/poller.go
package druid

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/CLARIAH/cattle-druid/internal/common"
	"github.com/CLARIAH/cattle-druid/internal/cow"
	"github.com/CLARIAH/cattle-druid/internal/pairing"
	"github.com/CLARIAH/cattle-druid/internal/storage"
)

// Notifier delivers a best-effort summary once a webhook produced graphs.
// Implementations must swallow their own failures; the poller never sees
// them.
type Notifier interface {
	NotifyGraphs(ctx context.Context, email, account string, stems []string)
}

// Poller handles one webhook event end to end: wait for a possible
// companion file, list the dataset's assets, pair them, narrow to the
// triggering stem, fetch what is missing locally, build and convert each
// pair or single, upload the produced graphs and notify the user.
type Poller struct {
	client        API
	store         *storage.Store
	invoker       *cow.Invoker
	notifier      Notifier
	companionWait time.Duration
}

func NewPoller(client API, store *storage.Store, invoker *cow.Invoker, notifier Notifier, companionWait time.Duration) *Poller {
	return &Poller{
		client:        client,
		store:         store,
		invoker:       invoker,
		notifier:      notifier,
		companionWait: companionWait,
	}
}

// HandleEvent runs the conversion pipeline for one webhook delivery and
// returns the stems that were converted and uploaded. A RemoteAPIError
// aborts the whole invocation; failures of individual pairs or singles are
// logged and skipped, never fatal to their siblings.
func (p *Poller) HandleEvent(ctx context.Context, owner, dataset string, ev Event) ([]string, error) {
	logger := common.Logger()
	logger.Info("druid: handling webhook event",
		"owner", owner, "dataset", dataset, "asset", ev.AssetName)

	if pairing.IsCSV(ev.AssetName) && p.companionWait > 0 {
		// Heuristic tolerance for out-of-order delivery of paired
		// uploads: give an accompanying .json a moment to arrive.
		logger.Debug("druid: waiting for possible companion json", "wait", p.companionWait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.companionWait):
		}
	}

	assets, err := p.client.ListAssets(ctx, owner, dataset)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(assets))
	for _, a := range assets {
		names = append(names, a.Name)
	}
	candidates, singles := pairing.Pair(names)
	candidates, singles = pairing.SelectCandidate(candidates, singles, ev.AssetName)
	if len(candidates) == 0 && len(singles) == 0 {
		logger.Info("druid: nothing to process for trigger", "asset", ev.AssetName)
		return nil, nil
	}

	ws, err := p.store.Resolve(owner, dataset)
	if err != nil {
		return nil, err
	}

	successes := p.processBatch(ctx, ws, owner, dataset, candidates, singles)

	if len(successes) > 0 && p.notifier != nil && ev.Email != "" {
		p.notifier.NotifyGraphs(ctx, ev.Email, ev.AccountName, successes)
	}
	logger.Info("druid: webhook event handled",
		"owner", owner, "dataset", dataset, "converted", len(successes))
	return successes, nil
}

// processBatch works through every selected pair and single in stem order.
// Items fail independently; the returned stems are the ones whose graph made
// it back to the remote system.
func (p *Poller) processBatch(ctx context.Context, ws storage.Workspace, owner, dataset string, candidates map[string]pairing.FilePair, singles map[string]pairing.SingleFile) []string {
	var successes []string
	for _, stem := range sortedPairStems(candidates) {
		if p.processPair(ctx, ws, owner, dataset, candidates[stem]) {
			successes = append(successes, stem)
		}
	}
	for _, stem := range sortedSingleStems(singles) {
		if p.processSingle(ctx, ws, owner, dataset, singles[stem]) {
			successes = append(successes, stem)
		}
	}
	return successes
}

func (p *Poller) processPair(ctx context.Context, ws storage.Workspace, owner, dataset string, pair pairing.FilePair) bool {
	logger := common.Logger()
	if err := p.fetchMissing(ctx, ws, owner, dataset, pair.CSV, pair.JSON); err != nil {
		logger.Error("druid: fetching pair failed", "stem", pair.Stem, "error", err)
		return false
	}
	return p.convertAndUpload(ctx, ws, owner, dataset, pair.Stem, pair.CSV, pair.JSON)
}

func (p *Poller) processSingle(ctx context.Context, ws storage.Workspace, owner, dataset string, single pairing.SingleFile) bool {
	logger := common.Logger()
	if err := p.fetchMissing(ctx, ws, owner, dataset, single.CSV); err != nil {
		logger.Error("druid: fetching single failed", "stem", single.Stem, "error", err)
		return false
	}
	return p.convertAndUpload(ctx, ws, owner, dataset, single.Stem, single.CSV, "")
}

// convertAndUpload runs build then convert on one CSV and pushes the
// resulting graph back. Failures are logged here and reported only through
// the boolean, keeping one item's failure away from its siblings.
func (p *Poller) convertAndUpload(ctx context.Context, ws storage.Workspace, owner, dataset, stem, csvName, jsonName string) bool {
	logger := common.Logger()
	csvPath := ws.Path(csvName)
	schemaPath := ""
	if jsonName != "" {
		schemaPath = ws.Path(jsonName)
	}
	if _, err := p.invoker.Build(ctx, csvPath, schemaPath); err != nil {
		logger.Error("druid: build failed", "stem", stem, "error", err)
		return false
	}
	quadsPath, err := p.invoker.Convert(ctx, csvPath)
	if err != nil {
		logger.Error("druid: convert failed", "stem", stem, "error", err)
		return false
	}
	if err := p.client.UploadGraph(ctx, owner, dataset, quadsPath); err != nil {
		logger.Error("druid: upload failed", "stem", stem, "error", err)
		return false
	}
	return true
}

// fetchMissing downloads any asset not already present in the workspace.
// Presence is checked by path existence only; WriteOnce keeps a racing
// second download from clobbering the first.
func (p *Poller) fetchMissing(ctx context.Context, ws storage.Workspace, owner, dataset string, names ...string) error {
	for _, name := range names {
		if name == "" || ws.Exists(name) {
			continue
		}
		body, err := p.client.DownloadAsset(ctx, owner, dataset, name)
		if err != nil {
			return err
		}
		_, werr := ws.WriteOnce(name, body)
		cerr := body.Close()
		if werr != nil {
			return werr
		}
		if cerr != nil && cerr != io.EOF {
			return cerr
		}
	}
	return nil
}

func sortedPairStems(m map[string]pairing.FilePair) []string {
	stems := make([]string, 0, len(m))
	for stem := range m {
		stems = append(stems, stem)
	}
	sort.Strings(stems)
	return stems
}

func sortedSingleStems(m map[string]pairing.SingleFile) []string {
	stems := make([]string, 0, len(m))
	for stem := range m {
		stems = append(stems, stem)
	}
	sort.Strings(stems)
	return stems
}

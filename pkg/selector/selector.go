// Package selector reduces a channel's candidate list to the items a sync
// should fetch.
package selector

import (
	"sort"

	"github.com/cperrin88/grinder/pkg/evr"
	"github.com/cperrin88/grinder/pkg/model"
)

// Select maps each candidate to its key and keeps one item per key.
//
// With filterLatest the key is name.arch and the newest variant wins; an
// item that only ties the stored one never replaces it. Without it the key is
// the full NEVRA and every candidate is kept.
func Select(items []model.PackageItem, filterLatest bool) map[string]model.PackageItem {
	selected := make(map[string]model.PackageItem, len(items))
	for _, item := range items {
		if !filterLatest {
			selected[item.NEVRA()] = item
			continue
		}
		key := item.NameArch()
		stored, ok := selected[key]
		if !ok || evr.Newer(itemEVR(item), itemEVR(stored)) {
			selected[key] = item
		}
	}
	return selected
}

// WorkList returns the selected items in a stable order for queueing.
func WorkList(selected map[string]model.PackageItem) []model.PackageItem {
	keys := make([]string, 0, len(selected))
	for k := range selected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]model.PackageItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, selected[k])
	}
	return items
}

func itemEVR(item model.PackageItem) evr.EVR {
	return evr.EVR{Epoch: item.Epoch, Version: item.Version, Release: item.Release}
}

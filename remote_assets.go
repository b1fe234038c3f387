package boardsync

import (
	"github.com/golang/glog"
)

/*
The remote asset listener registers newly-shared payloads with the surface.
Only top-level key additions matter; payloads are immutable once set.

An optional interception hook sees each batch first. A veto (ok false)
drops the batch outright, the host's explicit "do nothing". An empty
non-veto result registers nothing but is otherwise a normal pass.
*/

// MapObserveFunction
func (self *Binding) observeAssets(keysChanged []string, txn *Transaction) {
	if txn.Origin == self {
		// echo suppression
		return
	}
	glog.V(2).Infof("[ras]pull keys = %d\n", len(keysChanged))
	self.pullAssets(keysChanged)
}

func (self *Binding) pullAssets(keys []string) {
	collected := []*Asset{}
	for _, key := range keys {
		if asset, ok := self.assets.Get(key); ok {
			collected = append(collected, asset.Clone())
		}
	}
	if len(collected) == 0 {
		return
	}

	self.mutex.Lock()
	if self.destroyed {
		self.mutex.Unlock()
		return
	}
	for _, asset := range collected {
		self.knownAssetIds[asset.Id] = true
	}
	self.mutex.Unlock()

	if hook := self.transformRemoteAssets; hook != nil {
		var transformed []*Asset
		var ok bool
		HandleError(func() {
			transformed, ok = hook(collected)
		})
		if !ok {
			glog.V(2).Infof("[ras]batch dropped by hook\n")
			return
		}
		collected = transformed
	}
	if len(collected) == 0 {
		return
	}
	self.surface.AddAssets(collected)
}

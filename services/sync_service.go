package services

import (
	"context"
	"time"

	"github.com/vaultpass/go-vaultpass-core/repository"
	"github.com/vaultpass/go-vaultpass-core/types"
)

// MergeCloudState reconciles local against remote entity sets per id.
// Last-write-wins by updatedAt; ties favor the local copy so no network round
// trip is needed to break them. remoteTombstones marks ids the remote has
// deleted; those local entities are staged for deletion too.
func MergeCloudState[T types.Mergeable](local, remote []T, remoteTombstones map[string]bool) types.MergeResult[T] {
	var result types.MergeResult[T]

	localByID := make(map[string]T, len(local))
	for _, entity := range local {
		localByID[entity.GetID()] = entity
	}
	remoteByID := make(map[string]T, len(remote))
	for _, entity := range remote {
		remoteByID[entity.GetID()] = entity
	}

	for _, remoteEntity := range remote {
		localEntity, exists := localByID[remoteEntity.GetID()]
		if !exists {
			result.ToAdd = append(result.ToAdd, remoteEntity)
			continue
		}
		if remoteEntity.GetUpdatedAt() > localEntity.GetUpdatedAt() {
			result.ToUpdate = append(result.ToUpdate, remoteEntity)
		}
	}
	for _, localEntity := range local {
		if remoteTombstones[localEntity.GetID()] {
			result.ToDelete = append(result.ToDelete, localEntity)
			continue
		}
		if _, exists := remoteByID[localEntity.GetID()]; !exists {
			result.ToDelete = append(result.ToDelete, localEntity)
		}
	}
	return result
}

// syncState is the per-vault sync metadata document.
type syncState struct {
	VaultID    string `json:"vaultId"`
	LastSyncAt int64  `json:"lastSyncAt"`
}

// SyncService computes merge plans between the local vault state and a remote
// backup and tracks sync timestamps.
type SyncService struct {
	itemService *ItemService
	metaRepo    repository.Repository
}

func NewSyncService(dbSelector repository.DBSelector, itemService *ItemService) *SyncService {
	metaRepo, err := dbSelector.ChooseDB(repository.SyncMeta)
	if err != nil {
		panic(err)
	}
	return &SyncService{itemService: itemService, metaRepo: metaRepo}
}

// MergePlan is the combined item/tag reconciliation between local state and a
// remote (already decrypted) backup.
type MergePlan struct {
	Items types.MergeResult[types.Item]
	Tags  types.MergeResult[types.Tag]
}

// PlanMerge computes the merge plan for a vault against a remote backup.
// Local items are compared in their decrypted form; items whose keys are
// expired are left out of the plan rather than misclassified as remote-only.
func (ss *SyncService) PlanMerge(vc *VaultCipher, vaultID string, remote *types.VaultBackup) (*MergePlan, error) {
	encItems, err := ss.itemService.ListItems(vaultID)
	if err != nil {
		return nil, err
	}
	localItems, err := ss.itemService.DecryptItems(vc, encItems, false)
	if err != nil {
		return nil, err
	}

	encTags, err := ss.itemService.ListTags(vaultID)
	if err != nil {
		return nil, err
	}
	localTags := make([]types.Tag, 0, len(encTags))
	for i := range encTags {
		tag, err := ss.itemService.DecryptTag(vc, &encTags[i])
		if err != nil {
			return nil, err
		}
		if tag == nil {
			continue
		}
		localTags = append(localTags, *tag)
	}

	remoteTombstones := make(map[string]bool, len(remote.Vault.DeletedItems))
	for _, tombstone := range remote.Vault.DeletedItems {
		remoteTombstones[tombstone.ID] = true
	}

	return &MergePlan{
		Items: MergeCloudState(localItems, remote.Vault.Items, remoteTombstones),
		Tags:  MergeCloudState(localTags, remote.Vault.Tags, nil),
	}, nil
}

// ApplyMerge executes a merge plan against the local store.
func (ss *SyncService) ApplyMerge(vc *VaultCipher, plan *MergePlan) error {
	for i := range plan.Items.ToAdd {
		if _, err := ss.itemService.SaveItem(vc, &plan.Items.ToAdd[i]); err != nil {
			return err
		}
	}
	for i := range plan.Items.ToUpdate {
		if _, err := ss.itemService.SaveItem(vc, &plan.Items.ToUpdate[i]); err != nil {
			return err
		}
	}
	for i := range plan.Items.ToDelete {
		if err := ss.itemService.DeleteItem(plan.Items.ToDelete[i].ID); err != nil {
			return err
		}
	}
	for i := range plan.Tags.ToAdd {
		if _, err := ss.itemService.SaveTag(vc, &plan.Tags.ToAdd[i]); err != nil {
			return err
		}
	}
	for i := range plan.Tags.ToUpdate {
		if _, err := ss.itemService.SaveTag(vc, &plan.Tags.ToUpdate[i]); err != nil {
			return err
		}
	}
	for i := range plan.Tags.ToDelete {
		if err := ss.itemService.DeleteTag(plan.Tags.ToDelete[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// TouchLastSync records a successful sync for a vault.
func (ss *SyncService) TouchLastSync(vaultID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	state := syncState{VaultID: vaultID, LastSyncAt: time.Now().UTC().UnixMilli()}
	return ss.metaRepo.Save(ctx, vaultID, state)
}

// LastSyncAt returns the last successful sync time of a vault, zero when the
// vault has never synced.
func (ss *SyncService) LastSyncAt(vaultID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	doc, err := ss.metaRepo.GetByID(ctx, vaultID)
	if err == types.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var state syncState
	if err := repository.MapToObject(doc, &state); err != nil {
		return 0, err
	}
	return state.LastSyncAt, nil
}

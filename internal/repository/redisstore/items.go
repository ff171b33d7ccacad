package redisstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/repository"
	"github.com/go-redis/redis/v8"
)

type itemRepository struct {
	client *redis.Client
}

func itemCreated(i *models.Item) (int64, string) { return i.CreatedAt.UnixNano(), i.ID }

// document strips the children, which are stored as documents of their own
func document(item *models.Item) ([]byte, error) {
	doc := *item
	doc.Children = nil
	return json.Marshal(&doc)
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	item, err := loadDoc[models.Item](ctx, r.client, itemKey(id))
	if err != nil {
		return nil, translate(err, "Item")
	}
	if err := r.attachChildren(ctx, []*models.Item{item}); err != nil {
		return nil, translate(err, "Item")
	}
	return item, nil
}

func (r *itemRepository) GetAll(ctx context.Context) ([]*models.Item, error) {
	return r.Find(ctx, repository.ItemFilter{})
}

func (r *itemRepository) Find(ctx context.Context, filter repository.ItemFilter) ([]*models.Item, error) {
	index := allItemsKey
	if filter.StoreID != "" {
		index = storeItemsKey(filter.StoreID)
	}
	ids, err := r.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, translate(err, "Item")
	}
	docs, err := loadDocs[models.Item](ctx, r.client, keysOf(itemKey, ids))
	if err != nil {
		return nil, translate(err, "Item")
	}

	keyword := strings.ToLower(filter.Keyword)
	items := make([]*models.Item, 0, len(docs))
	for _, item := range docs {
		if filter.RootOnly && item.ParentID != nil {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(item.Name), keyword) {
			continue
		}
		items = append(items, item)
	}
	sortByCreation(items, itemCreated)

	if err := r.attachChildren(ctx, items); err != nil {
		return nil, translate(err, "Item")
	}
	return items, nil
}

func (r *itemRepository) attachChildren(ctx context.Context, items []*models.Item) error {
	if len(items) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(items))
	for i, item := range items {
		cmds[i] = pipe.SMembers(ctx, childrenKey(item.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	for i, item := range items {
		children, err := loadDocs[models.Item](ctx, r.client, keysOf(itemKey, cmds[i].Val()))
		if err != nil {
			return err
		}
		sortByCreation(children, itemCreated)
		item.Children = children
	}
	return nil
}

// Add writes the item and its children in one MULTI/EXEC block
func (r *itemRepository) Add(ctx context.Context, item *models.Item) error {
	found, err := exists(ctx, r.client, itemKey(item.ID))
	if err != nil {
		return translate(err, "Item")
	}
	if found {
		return apperr.Validation("Validation failed", "duplicate key: item "+item.ID)
	}

	docs, err := documents(item)
	if err != nil {
		return translate(err, "Item")
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		writeItems(ctx, pipe, item, docs)
		return nil
	})
	return translate(err, "Item")
}

// Update replaces the stored aggregate. Children missing from item are
// deleted together with the package lines that reference them.
func (r *itemRepository) Update(ctx context.Context, item *models.Item) error {
	current, err := loadDoc[models.Item](ctx, r.client, itemKey(item.ID))
	if err != nil {
		return translate(err, "Item")
	}
	existing, err := r.client.SMembers(ctx, childrenKey(item.ID)).Result()
	if err != nil {
		return translate(err, "Item")
	}

	kept := make(map[string]struct{}, len(item.Children))
	for _, child := range item.Children {
		kept[child.ID] = struct{}{}
	}
	var dropped []string
	for _, id := range existing {
		if _, ok := kept[id]; !ok {
			dropped = append(dropped, id)
		}
	}

	packages, err := r.packagesWithout(ctx, dropped)
	if err != nil {
		return translate(err, "Item")
	}
	docs, err := documents(item)
	if err != nil {
		return translate(err, "Item")
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if current.StoreID != item.StoreID {
			pipe.SRem(ctx, storeItemsKey(current.StoreID), item.ID)
		}
		deleteItems(ctx, pipe, current.StoreID, dropped)
		if len(dropped) > 0 {
			pipe.SRem(ctx, childrenKey(item.ID), toMembers(dropped)...)
		}
		writeItems(ctx, pipe, item, docs)
		return writePackages(ctx, pipe, packages)
	})
	return translate(err, "Item")
}

// Remove deletes the item, its children and every package line referencing
// any of them
func (r *itemRepository) Remove(ctx context.Context, id string) error {
	item, err := loadDoc[models.Item](ctx, r.client, itemKey(id))
	if err != nil {
		return translate(err, "Item")
	}
	children, err := r.client.SMembers(ctx, childrenKey(id)).Result()
	if err != nil {
		return translate(err, "Item")
	}
	ids := append(children, id)

	packages, err := r.packagesWithout(ctx, ids)
	if err != nil {
		return translate(err, "Item")
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleteItems(ctx, pipe, item.StoreID, ids)
		if item.ParentID != nil {
			pipe.SRem(ctx, childrenKey(*item.ParentID), id)
		}
		return writePackages(ctx, pipe, packages)
	})
	return translate(err, "Item")
}

// packagesWithout loads the packages referencing any of itemIDs and drops
// those lines from them
func (r *itemRepository) packagesWithout(ctx context.Context, itemIDs []string) ([]*models.Package, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	packageIDs, err := r.client.SUnion(ctx, keysOf(itemPackagesKey, itemIDs)...).Result()
	if err != nil {
		return nil, err
	}
	packages, err := loadDocs[models.Package](ctx, r.client, keysOf(packageKey, packageIDs))
	if err != nil {
		return nil, err
	}

	removed := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		removed[id] = struct{}{}
	}
	for _, pkg := range packages {
		lines := pkg.Items[:0]
		for _, line := range pkg.Items {
			if _, gone := removed[line.ItemID]; !gone {
				lines = append(lines, line)
			}
		}
		pkg.Items = lines
	}
	return packages, nil
}

type itemDoc struct {
	item *models.Item
	data []byte
}

func documents(item *models.Item) ([]itemDoc, error) {
	all := append([]*models.Item{item}, item.Children...)
	docs := make([]itemDoc, 0, len(all))
	for _, it := range all {
		data, err := document(it)
		if err != nil {
			return nil, err
		}
		docs = append(docs, itemDoc{item: it, data: data})
	}
	return docs, nil
}

// writeItems queues the documents and index entries of an item and its children
func writeItems(ctx context.Context, pipe redis.Pipeliner, root *models.Item, docs []itemDoc) {
	for _, doc := range docs {
		pipe.Set(ctx, itemKey(doc.item.ID), doc.data, 0)
		pipe.SAdd(ctx, allItemsKey, doc.item.ID)
		pipe.SAdd(ctx, storeItemsKey(doc.item.StoreID), doc.item.ID)
		if doc.item != root {
			pipe.SAdd(ctx, childrenKey(root.ID), doc.item.ID)
		}
	}
}

func deleteItems(ctx context.Context, pipe redis.Pipeliner, storeID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	members := toMembers(ids)
	for _, id := range ids {
		pipe.Del(ctx, itemKey(id), childrenKey(id), itemPackagesKey(id))
	}
	pipe.SRem(ctx, allItemsKey, members...)
	pipe.SRem(ctx, storeItemsKey(storeID), members...)
}

func toMembers(ids []string) []interface{} {
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return members
}

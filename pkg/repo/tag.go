package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
)

// CreateTag creates or updates a lightweight tag ref under refs/tags/.
func (r *Repo) CreateTag(name, rev string, force bool) (object.Hash, error) {
	target, err := r.ResolveCommit(rev)
	if err != nil {
		return "", fmt.Errorf("create tag: %w", err)
	}
	if err := r.writeTagRef(name, target, force); err != nil {
		return "", fmt.Errorf("create tag: %w", err)
	}
	return target, nil
}

// CreateAnnotatedTag stores a tag object pointing at rev's commit and
// points refs/tags/<name> at it.
func (r *Repo) CreateAnnotatedTag(name, rev, message string, force bool) (object.Hash, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("create annotated tag: message is required")
	}
	target, err := r.ResolveCommit(rev)
	if err != nil {
		return "", fmt.Errorf("create annotated tag: %w", err)
	}
	tagID, err := r.Objects.WriteTag(&object.TagObj{
		TargetHash: target,
		TargetType: object.TypeCommit,
		Name:       name,
		Tagger:     r.identity(),
		Message:    message,
	})
	if err != nil {
		return "", fmt.Errorf("create annotated tag: write tag object: %w", err)
	}
	if err := r.writeTagRef(name, tagID, force); err != nil {
		return "", fmt.Errorf("create annotated tag: %w", err)
	}
	return tagID, nil
}

func (r *Repo) writeTagRef(name string, target object.Hash, force bool) error {
	refName := refs.TagsPrefix + strings.TrimSpace(name)
	if err := refs.ValidateName(refName); err != nil {
		return err
	}
	if force {
		return refs.Set(r.Refs, refName, target, "tag: "+name)
	}
	err := r.Refs.CompareAndSwap(refName, "", target, "tag: "+name)
	if errors.Is(err, refs.ErrCASMismatch) {
		return fmt.Errorf("tag %q already exists", name)
	}
	return err
}

// DeleteTag removes refs/tags/<name>.
func (r *Repo) DeleteTag(name string) error {
	if err := r.Refs.Delete(refs.TagsPrefix+name, ""); err != nil {
		if errors.Is(err, refs.ErrNotFound) {
			return fmt.Errorf("delete tag: tag %q does not exist", name)
		}
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

// ListTags returns tag name -> ref target (a commit or tag object).
func (r *Repo) ListTags() (map[string]object.Hash, error) {
	list, err := r.Refs.List(refs.TagsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	out := make(map[string]object.Hash, len(list))
	for _, ref := range list {
		out[strings.TrimPrefix(ref.Name, refs.TagsPrefix)] = ref.Target
	}
	return out, nil
}

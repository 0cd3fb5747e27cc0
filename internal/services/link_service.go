// Package services contains the business logic of the URL shortener: alias
// allocation, the redirect hot path, and owner/admin link management.
package services

import (
	"context"
	"errors"
	"log"
	"net/url"

	"github.com/google/uuid"

	"github.com/axellelanca/shortly/internal/alias"
	"github.com/axellelanca/shortly/internal/cache"
	apperrors "github.com/axellelanca/shortly/internal/errors"
	"github.com/axellelanca/shortly/internal/identity"
	"github.com/axellelanca/shortly/internal/models"
	"github.com/axellelanca/shortly/internal/repository"
)

// maxAliasRetries bounds the generate-check-insert loop. With a 62^7 space a
// collision is astronomically rare, so hitting the bound means something is
// wrong (or a test double is running with a tiny alphabet) and we fail closed
// rather than loop forever.
const maxAliasRetries = 10

// LinkService provides the operations exposed upward to the HTTP layer.
type LinkService struct {
	linkRepo  repository.LinkRepository
	clickRepo repository.ClickRepository
	existence *cache.Existence
}

// NewLinkService wires the service with its store and cache collaborators.
func NewLinkService(linkRepo repository.LinkRepository, clickRepo repository.ClickRepository, existence *cache.Existence) *LinkService {
	return &LinkService{
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		existence: existence,
	}
}

// validateTargetURL accepts only absolute http(s) URLs.
func validateTargetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperrors.ErrInvalidURL
	}
	return nil
}

// CreateLink shortens targetURL for ownerID. With a custom alias the value is
// sanitized and validated first; without one a random 7-character alias is
// allocated. The existence cache only pre-checks to avoid wasted round-trips;
// the store's unique index is what actually serializes racing creates.
func (s *LinkService) CreateLink(ctx context.Context, targetURL, ownerID, customAlias string) (*models.Link, error) {
	if err := validateTargetURL(targetURL); err != nil {
		return nil, err
	}

	var shortID string

	if customAlias != "" {
		sanitized := alias.Sanitize(customAlias)
		if err := alias.Validate(customAlias); err != nil {
			return nil, err
		}
		if alias.IsReserved(sanitized) {
			return nil, apperrors.NewValidationError("alias", "this alias is reserved by the system")
		}

		taken, err := s.existence.Exists(ctx, sanitized)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperrors.ErrAliasTaken
		}

		shortID = sanitized
	} else {
		generated, err := s.allocateRandomAlias(ctx)
		if err != nil {
			return nil, err
		}
		shortID = generated
	}

	link := &models.Link{
		ID:        uuid.New().String(),
		ShortID:   shortID,
		TargetURL: targetURL,
		OwnerID:   ownerID,
		Status:    models.StatusActive,
	}

	if err := s.linkRepo.Create(ctx, link); err != nil {
		// A concurrent create can still win the alias between our pre-check
		// and the insert; the unique index reports it as ErrAliasTaken.
		return nil, err
	}

	s.existence.CacheKnown(ctx, []cache.Known{{Alias: shortID, Exists: true}})

	return link, nil
}

// allocateRandomAlias draws random aliases until one is free, checking
// through the existence cache, with a hard retry bound.
func (s *LinkService) allocateRandomAlias(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAliasRetries; attempt++ {
		candidate, err := alias.Generate(alias.Length)
		if err != nil {
			return "", err
		}

		taken, err := s.existence.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if taken {
			log.Printf("alias %q already exists, retrying generation (%d/%d)", candidate, attempt+1, maxAliasRetries)
			continue
		}

		return candidate, nil
	}
	return "", apperrors.ErrAliasGenerationFailed
}

// ResolveRedirect maps a public alias to its redirect target and counts the
// visit. It reads the store directly, never the existence cache: serving a
// redirect from possibly stale cached data is not acceptable, so a store
// failure here answers not-found rather than leaking an internal error.
func (s *LinkService) ResolveRedirect(ctx context.Context, shortID string) (*models.Link, error) {
	link, err := s.linkRepo.ResolveActive(ctx, shortID)
	if err != nil {
		if errors.Is(err, apperrors.ErrLinkNotFound) {
			return nil, err
		}
		log.Printf("error resolving %s, answering not-found: %v", shortID, err)
		return nil, apperrors.ErrLinkNotFound
	}
	return link, nil
}

// authorize rejects requests from principals that neither own the link nor
// hold the admin role.
func authorize(link *models.Link, requester *identity.User) error {
	if requester == nil {
		return apperrors.ErrNotAuthenticated
	}
	if link.OwnerID != requester.ID && !requester.IsAdmin() {
		return apperrors.ErrForbidden
	}
	return nil
}

// EditLink applies a patch to the link addressed by key (alias or internal
// id). Alias changes run through the same sanitize/validate/reserved pipeline
// as creation, and the freed and newly taken aliases are written back to the
// existence cache so duplicate checks do not serve stale answers for up to a
// full TTL.
func (s *LinkService) EditLink(ctx context.Context, key string, patch models.LinkPatch, requester *identity.User) (*models.Link, error) {
	link, err := s.linkRepo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := authorize(link, requester); err != nil {
		return nil, err
	}

	if patch.TargetURL != nil {
		if err := validateTargetURL(*patch.TargetURL); err != nil {
			return nil, err
		}
	}

	if patch.Status != nil && *patch.Status != models.StatusActive && *patch.Status != models.StatusPaused {
		return nil, apperrors.NewValidationError("status", "status must be ACTIVE or PAUSED")
	}

	oldAlias := link.ShortID
	renaming := false

	if patch.ShortID != nil {
		sanitized := alias.Sanitize(*patch.ShortID)
		if err := alias.Validate(*patch.ShortID); err != nil {
			return nil, err
		}
		if alias.IsReserved(sanitized) {
			return nil, apperrors.NewValidationError("alias", "this alias is reserved by the system")
		}

		if sanitized != link.ShortID {
			taken, err := s.existence.Exists(ctx, sanitized)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, apperrors.ErrAliasTaken
			}
			renaming = true
		}
		patch.ShortID = &sanitized
	}

	updated, err := s.linkRepo.Update(ctx, link.ID, patch)
	if err != nil {
		return nil, err
	}

	if renaming {
		s.existence.CacheKnown(ctx, []cache.Known{
			{Alias: oldAlias, Exists: false},
			{Alias: updated.ShortID, Exists: true},
		})
	}

	return updated, nil
}

// DeleteLink removes the link addressed by key. Deletion is terminal and
// frees the alias, which is reflected into the existence cache immediately.
func (s *LinkService) DeleteLink(ctx context.Context, key string, requester *identity.User) error {
	link, err := s.linkRepo.FindByKey(ctx, key)
	if err != nil {
		return err
	}
	if err := authorize(link, requester); err != nil {
		return err
	}

	if err := s.linkRepo.Delete(ctx, link.ID); err != nil {
		return err
	}

	s.existence.CacheKnown(ctx, []cache.Known{{Alias: link.ShortID, Exists: false}})

	return nil
}

// GetLinkStats returns the link addressed by key along with the number of
// detailed click rows recorded for it.
func (s *LinkService) GetLinkStats(ctx context.Context, key string) (*models.Link, int64, error) {
	link, err := s.linkRepo.FindByKey(ctx, key)
	if err != nil {
		return nil, 0, err
	}

	recorded, err := s.clickRepo.CountClicksByLinkID(ctx, link.ID)
	if err != nil {
		return nil, 0, err
	}

	return link, recorded, nil
}

// ListLinks returns every link owned by ownerID, newest first. Listing also
// warms the existence cache: the caller just proved these aliases exist, so
// any of them the cache does not know yet get written back in one pass.
func (s *LinkService) ListLinks(ctx context.Context, ownerID string) ([]models.Link, error) {
	links, err := s.linkRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if len(links) > 0 {
		aliases := make([]string, len(links))
		for i := range links {
			aliases[i] = links[i].ShortID
		}
		batch := s.existence.ExistsBatch(ctx, aliases)
		if len(batch.Uncached) > 0 {
			known := make([]cache.Known, len(batch.Uncached))
			for i, a := range batch.Uncached {
				known[i] = cache.Known{Alias: a, Exists: true}
			}
			s.existence.CacheKnown(ctx, known)
		}
	}

	return links, nil
}

// SearchLinks filters an owner's links by substring on alias and target.
func (s *LinkService) SearchLinks(ctx context.Context, ownerID, query string) ([]models.Link, error) {
	return s.linkRepo.Search(ctx, ownerID, query)
}

// CountLinks returns how many links ownerID has created.
func (s *LinkService) CountLinks(ctx context.Context, ownerID string) (int64, error) {
	return s.linkRepo.CountByOwner(ctx, ownerID)
}

// CacheStats exposes the existence cache keyspace for admin diagnostics.
func (s *LinkService) CacheStats(ctx context.Context) (cache.Stats, error) {
	return s.existence.CacheStats(ctx)
}

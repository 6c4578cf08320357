package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	ID          string
	SubjectType domain.SubjectType
	Role        domain.Role
	Name        string
}

// Actor returns the identity the policy evaluates.
func (p *Principal) Actor() domain.Actor {
	return domain.Actor{ID: p.ID, Role: p.Role}
}

// PrincipalResolver turns bearer tokens into principals backed by the directories.
type PrincipalResolver struct {
	tokens    *TokenManager
	residents repository.ResidentRepository
	staff     repository.StaffRepository
}

// NewPrincipalResolver constructs resolver.
func NewPrincipalResolver(tokens *TokenManager, residents repository.ResidentRepository, staff repository.StaffRepository) *PrincipalResolver {
	return &PrincipalResolver{tokens: tokens, residents: residents, staff: staff}
}

// Resolve validates token and loads the subject. Roles come from the directory, not the token.
func (r *PrincipalResolver) Resolve(ctx context.Context, token string) (*Principal, error) {
	claims, err := r.tokens.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	switch claims.Subject {
	case domain.SubjectTypeResident:
		resident, err := r.residents.GetByID(ctx, claims.SubjectID)
		if err != nil {
			return nil, lookupError(err, "resident not found")
		}
		if !resident.Active {
			return nil, apperrors.NewUnauthorized("resident is inactive")
		}
		return &Principal{ID: resident.ID, SubjectType: claims.Subject, Role: domain.RoleResident, Name: resident.Name}, nil
	case domain.SubjectTypeStaff:
		member, err := r.staff.GetByID(ctx, claims.SubjectID)
		if err != nil {
			return nil, lookupError(err, "staff not found")
		}
		if !member.Active {
			return nil, apperrors.NewUnauthorized("staff member is inactive")
		}
		return &Principal{ID: member.ID, SubjectType: claims.Subject, Role: member.Role, Name: member.Name}, nil
	default:
		return nil, apperrors.NewUnauthorized("unknown subject")
	}
}

// Authenticate satisfies the realtime gateway's authenticator.
func (r *PrincipalResolver) Authenticate(ctx context.Context, token string) (domain.Actor, error) {
	p, err := r.Resolve(ctx, token)
	if err != nil {
		return domain.Actor{}, err
	}
	return p.Actor(), nil
}

func lookupError(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewUnauthorized(message)
	}
	return apperrors.NewInternalError(err)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	resolver *PrincipalResolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(resolver *PrincipalResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	principal, err := m.resolver.Resolve(c.UserContext(), strings.TrimSpace(parts[1]))
	if err != nil {
		return err
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	principal, ok := c.Locals(principalKey).(*Principal)
	return principal, ok && principal != nil
}

package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage"
)

// DefaultTestUserPrefix marks identities whose profile data may override decisions.
const DefaultTestUserPrefix = "test-user"

// Decision names. They double as profile-data property names for test users
// and as entries in Rules.Deny.
const (
	DecisionInitReg              = "canInitReg"
	DecisionAutoValidate         = "autoValidate"
	DecisionCreateTresor         = "canCreateTresor"
	DecisionShare                = "canShare"
	DecisionKick                 = "canKick"
	DecisionCreateInvitationLink = "canCreateInvitationLink"
	DecisionAcceptInvitationLink = "canAcceptInvitationLink"
	DecisionRevokeInvitationLink = "canRevokeInvitationLink"
	DecisionAccessData           = "canAccessData"
	DecisionStoreData            = "canStoreData"
	DecisionStoreProfile         = "canStoreProfile"
	DecisionGetUserID            = "canGetUserId"
	DecisionValidateUser         = "canValidateUser"
	DecisionFinishRegistration   = "canFinishRegistration"
	DecisionOpenIDLogin          = "canLogin"
)

var knownDecisions = []string{
	DecisionInitReg,
	DecisionAutoValidate,
	DecisionCreateTresor,
	DecisionShare,
	DecisionKick,
	DecisionCreateInvitationLink,
	DecisionAcceptInvitationLink,
	DecisionRevokeInvitationLink,
	DecisionAccessData,
	DecisionStoreData,
	DecisionStoreProfile,
	DecisionGetUserID,
	DecisionValidateUser,
	DecisionFinishRegistration,
	DecisionOpenIDLogin,
}

// Rules is a declarative policy loaded from YAML.
//
//	test_user_prefix: test-user
//	membership_data_access: true
//	deny: [canKick]
type Rules struct {
	// TestUserPrefix selects identities whose profile data may override
	// decisions with boolean properties named after the decision.
	TestUserPrefix string `yaml:"test_user_prefix"`
	// MembershipDataAccess restricts data reads to tresor members and
	// overwrites to members of the existing entry's tresor.
	MembershipDataAccess *bool `yaml:"membership_data_access"`
	// Deny lists decisions refused for every identity.
	Deny []string `yaml:"deny"`
}

// DefaultRules returns the rules used when no file is configured.
func DefaultRules() Rules {
	membership := true
	return Rules{TestUserPrefix: DefaultTestUserPrefix, MembershipDataAccess: &membership}
}

// LoadRules reads a YAML rules file. An empty path yields DefaultRules.
func LoadRules(path string) (Rules, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rules and applies defaults.
func ParseRules(data []byte) (Rules, error) {
	rules := Rules{}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse policy file: %w", err)
	}
	defaults := DefaultRules()
	if strings.TrimSpace(rules.TestUserPrefix) == "" {
		rules.TestUserPrefix = defaults.TestUserPrefix
	}
	if rules.MembershipDataAccess == nil {
		rules.MembershipDataAccess = defaults.MembershipDataAccess
	}
	for _, decision := range rules.Deny {
		if !slices.Contains(knownDecisions, decision) {
			return Rules{}, fmt.Errorf("unknown decision %q in deny list", decision)
		}
	}
	return rules, nil
}

func (r Rules) denied(decision string) bool {
	return slices.Contains(r.Deny, decision)
}

func (r Rules) isTestUser(userName string) bool {
	return r.TestUserPrefix != "" && strings.HasPrefix(userName, r.TestUserPrefix)
}

// decide resolves a decision for userName: a global deny wins, then a test
// user's profile flag, then fallback.
func (r Rules) decide(decision, userName, profileData string, fallback bool) bool {
	if r.denied(decision) {
		return false
	}
	if r.isTestUser(userName) {
		if value, ok := ProfileFlag(profileData, decision); ok {
			return value
		}
	}
	return fallback
}

// ProfileFlag reads a boolean property from a JSON profile document. It
// reports false for ok when the document is not an object or the property
// is missing or not a boolean.
func ProfileFlag(profileData, property string) (value bool, ok bool) {
	if strings.TrimSpace(profileData) == "" {
		return false, false
	}
	var profile map[string]any
	if err := json.Unmarshal([]byte(profileData), &profile); err != nil {
		return false, false
	}
	raw, present := profile[property]
	if !present {
		return false, false
	}
	value, ok = raw.(bool)
	return value, ok
}

func isMember(tresor *storage.Tresor, userID string) bool {
	return tresor != nil && tresor.HasMember(userID)
}

// Hooks builds the policy described by the rules.
func (r Rules) Hooks() Hooks {
	membership := r.MembershipDataAccess == nil || *r.MembershipDataAccess
	return Hooks{
		InitRegFunc: func(_ context.Context, userName, profileData string) (bool, error) {
			return r.decide(DecisionInitReg, userName, profileData, true), nil
		},
		CanFinishRegistrationFunc: func(_ context.Context, ident identity.Identity) (bool, error) {
			return !r.denied(DecisionFinishRegistration), nil
		},
		FinishedRegistrationFunc: func(ctx context.Context, ident identity.Identity, validationCode string, validate ValidateFunc) error {
			if !r.isTestUser(ident.UserName) || validate == nil {
				return nil
			}
			if auto, ok := ProfileFlag(ident.ProfileData, DecisionAutoValidate); !ok || !auto {
				return nil
			}
			log.Printf("auto-validating test user %s", ident.UserName)
			return validate(ctx, ident.ID, validationCode)
		},
		CanValidateUserFunc: func(_ context.Context, ident identity.Identity) (bool, error) {
			return !r.denied(DecisionValidateUser), nil
		},
		CanGetUserIDFunc: func(_ context.Context, ident identity.Identity) (bool, error) {
			return r.denied(DecisionGetUserID), nil
		},
		CanCreateTresorFunc: func(_ context.Context, actor identity.Identity, _ []string, _ string) (bool, error) {
			return r.decide(DecisionCreateTresor, actor.UserName, actor.ProfileData, true), nil
		},
		ApproveShareFunc: func(_ context.Context, _ storage.Tresor, _, _ *identity.Identity, actor identity.Identity) (bool, error) {
			return r.decide(DecisionShare, actor.UserName, actor.ProfileData, true), nil
		},
		ApproveKickFunc: func(_ context.Context, _ storage.Tresor, _, _ *identity.Identity, actor identity.Identity) (bool, error) {
			return r.decide(DecisionKick, actor.UserName, actor.ProfileData, true), nil
		},
		ApproveInvitationLinkCreationFunc: func(_ context.Context, actor identity.Identity, _ storage.Tresor, _ *identity.Identity) (bool, error) {
			return r.decide(DecisionCreateInvitationLink, actor.UserName, actor.ProfileData, true), nil
		},
		ApproveInvitationLinkAcceptionFunc: func(_ context.Context, _ storage.Tresor, _, _ *identity.Identity, actor identity.Identity) (bool, error) {
			return r.decide(DecisionAcceptInvitationLink, actor.UserName, actor.ProfileData, true), nil
		},
		ApproveInvitationLinkRevocationFunc: func(_ context.Context, _ storage.Tresor, _ *identity.Identity, actor identity.Identity) (bool, error) {
			return r.decide(DecisionRevokeInvitationLink, actor.UserName, actor.ProfileData, true), nil
		},
		CanAccessDataFunc: func(_ context.Context, actor identity.Identity, entry DataContext) (bool, error) {
			fallback := !membership || isMember(entry.Tresor, actor.ID)
			return r.decide(DecisionAccessData, actor.UserName, actor.ProfileData, fallback), nil
		},
		CanStoreDataFunc: func(_ context.Context, actor identity.Identity, _, _ string, _ *storage.Tresor, oldEntry *DataContext) (bool, error) {
			fallback := !membership || oldEntry == nil || isMember(oldEntry.Tresor, actor.ID)
			return r.decide(DecisionStoreData, actor.UserName, actor.ProfileData, fallback), nil
		},
		CanStoreProfileFunc: func(_ context.Context, actor identity.Identity, _ string) (bool, error) {
			return r.decide(DecisionStoreProfile, actor.UserName, actor.ProfileData, true), nil
		},
		OpenIDVerifyFunc: func(_ context.Context, ident identity.Identity, _ map[string]any) (bool, error) {
			return r.decide(DecisionOpenIDLogin, ident.UserName, ident.ProfileData, true), nil
		},
	}
}

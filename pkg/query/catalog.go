package query

import (
	"slices"
	"sort"
)

// Shape identifies one recognized statement shape. Callers that already know
// the shape they want can pass it to Gateway.ExecuteShape and skip text
// classification entirely.
type Shape int

const (
	ShapeUnknown Shape = iota

	UsersByResetToken
	UsersExpiredResetTokens
	UsersMissingActiveFlag
	UsersCount
	UsersByEmail
	UsersByID
	UsersWithRole
	UsersAll
	RolesByName
	RolesByID
	RolesAll
	CompaniesCount
	CompaniesByID
	CompaniesAll
	ServicesByID
	ServicesAll
	ContractsExpiring
	ContractsCount
	ContractsByCompany
	ContractsByID
	ContractsAll
	CommentPermission
	CommentsByContract
	CommentsByID
	AttachmentsByComment
	AttachmentByID
	AccessByContractAndUser
	AccessByContract

	UsersInsert
	RolesInsert
	CompaniesInsert
	ServicesInsert
	ContractsInsert
	CommentsInsert
	AttachmentsInsert
	AccessInsert

	UsersSetPassword
	UsersSetResetToken
	UsersClearResetToken
	// UpdateGeneric applies the SET clause of the statement text to the row
	// keyed by the last param. It applies to every known table and cannot be
	// executed without text.
	UpdateGeneric

	// DeleteAny is a recognized delete with no executable shape.
	DeleteAny
)

var shapeNames = map[Shape]string{
	UsersByResetToken:       "users_by_reset_token",
	UsersExpiredResetTokens: "users_expired_reset_tokens",
	UsersMissingActiveFlag:  "users_missing_active_flag",
	UsersCount:              "users_count",
	UsersByEmail:            "users_by_email",
	UsersByID:               "users_by_id",
	UsersWithRole:           "users_with_role",
	UsersAll:                "users_all",
	RolesByName:             "roles_by_name",
	RolesByID:               "roles_by_id",
	RolesAll:                "roles_all",
	CompaniesCount:          "companies_count",
	CompaniesByID:           "companies_by_id",
	CompaniesAll:            "companies_all",
	ServicesByID:            "services_by_id",
	ServicesAll:             "services_all",
	ContractsExpiring:       "contracts_expiring",
	ContractsCount:          "contracts_count",
	ContractsByCompany:      "contracts_by_company",
	ContractsByID:           "contracts_by_id",
	ContractsAll:            "contracts_all",
	CommentPermission:       "comment_permission",
	CommentsByContract:      "comments_by_contract",
	CommentsByID:            "comments_by_id",
	AttachmentsByComment:    "attachments_by_comment",
	AttachmentByID:          "attachment_by_id",
	AccessByContractAndUser: "access_by_contract_and_user",
	AccessByContract:        "access_by_contract",
	UsersInsert:             "users_insert",
	RolesInsert:             "roles_insert",
	CompaniesInsert:         "companies_insert",
	ServicesInsert:          "services_insert",
	ContractsInsert:         "contracts_insert",
	CommentsInsert:          "comments_insert",
	AttachmentsInsert:       "attachments_insert",
	AccessInsert:            "access_insert",
	UsersSetPassword:        "users_set_password",
	UsersSetResetToken:      "users_set_reset_token",
	UsersClearResetToken:    "users_clear_reset_token",
	UpdateGeneric:           "update_generic",
	DeleteAny:               "delete_any",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseShape returns the shape with the given name.
func ParseShape(name string) (Shape, bool) {
	for shape, n := range shapeNames {
		if n == name {
			return shape, true
		}
	}
	return ShapeUnknown, false
}

// Rule recognizes one shape. Anchors are matched on word boundaries against
// normalized text: every All anchor must be present, at least one Any anchor
// when Any is set, and no None anchor. MinParams is the arity the shape needs
// to be chosen over a broader one.
//
// Params names the positional parameters in the order the handler reads them.
// This order is the contract with callers.
//
// Key and Sets pin an update to one exact form: its WHERE clause must be the
// single test Key and its SET entries, audit columns aside, exactly Sets.
// Both use the canonical spelling of updateSignature.
type Rule struct {
	Shape     Shape
	Intent    Intent
	Table     string
	All       []string
	Any       []string
	None      []string
	MinParams int
	Key       string
	Sets      []string
	Params    []string
	Example   string
}

func (r Rule) matches(normalized string, params []any) bool {
	if len(params) < r.MinParams {
		return false
	}
	for _, a := range r.All {
		if !containsAnchor(normalized, a) {
			return false
		}
	}
	if len(r.Any) > 0 {
		found := false
		for _, a := range r.Any {
			if containsAnchor(normalized, a) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, a := range r.None {
		if containsAnchor(normalized, a) {
			return false
		}
	}
	if r.Key != "" {
		sets, key, ok := updateSignature(normalized)
		if !ok || key != r.Key {
			return false
		}
		return slices.Equal(sets, slices.Sorted(slices.Values(r.Sets)))
	}
	return true
}

// catalog lists the recognized shapes. Within an intent and table, rules are
// ordered most qualified first; the first match wins.
var catalog = []Rule{
	// users
	{
		Shape: UsersByResetToken, Intent: IntentSelect, Table: "users",
		All:       []string{"from users", "reset_token = $", "reset_token_expires >"},
		MinParams: 1, Params: []string{"reset_token"},
		Example: "SELECT * FROM users WHERE reset_token = $1 AND reset_token_expires > NOW()",
	},
	{
		Shape: UsersExpiredResetTokens, Intent: IntentSelect, Table: "users",
		All:     []string{"from users", "reset_token_expires <"},
		Params:  []string{"now"},
		Example: "SELECT id FROM users WHERE reset_token IS NOT NULL AND reset_token_expires < $1",
	},
	{
		Shape: UsersMissingActiveFlag, Intent: IntentSelect, Table: "users",
		All:     []string{"from users", "is_active is null"},
		Example: "SELECT id FROM users WHERE is_active IS NULL",
	},
	{
		Shape: UsersCount, Intent: IntentSelect, Table: "users",
		All: []string{"count(", "from users"}, None: []string{"where"},
		Example: "SELECT COUNT(*) FROM users",
	},
	{
		Shape: UsersByEmail, Intent: IntentSelect, Table: "users",
		All:       []string{"from users", "email = $"},
		MinParams: 1, Params: []string{"email"},
		Example: "SELECT * FROM users WHERE email = $1",
	},
	{
		Shape: UsersByID, Intent: IntentSelect, Table: "users",
		All:       []string{"from users", "id = $"},
		MinParams: 1, Params: []string{"id"},
		Example: "SELECT u.*, r.name AS role_name FROM users u LEFT JOIN roles r ON r.id = u.role_id WHERE u.id = $1",
	},
	{
		Shape: UsersWithRole, Intent: IntentSelect, Table: "users",
		All: []string{"from users"}, Any: []string{"join roles", "role_name"}, None: []string{"count(", "where"},
		Example: "SELECT u.id, u.name, u.email, r.name AS role_name FROM users u JOIN roles r ON r.id = u.role_id ORDER BY u.name",
	},
	{
		Shape: UsersAll, Intent: IntentSelect, Table: "users",
		All: []string{"from users"}, None: []string{"count(", "where"},
		Example: "SELECT id, name, email, role_id, is_active, created_at FROM users ORDER BY name",
	},

	// roles
	{
		Shape: RolesByName, Intent: IntentSelect, Table: "roles",
		All:       []string{"from roles", "name = $"},
		MinParams: 1, Params: []string{"name"},
		Example: "SELECT * FROM roles WHERE name = $1",
	},
	{
		Shape: RolesByID, Intent: IntentSelect, Table: "roles",
		All:       []string{"from roles", "id = $"},
		MinParams: 1, Params: []string{"id"},
		Example: "SELECT * FROM roles WHERE id = $1",
	},
	{
		Shape: RolesAll, Intent: IntentSelect, Table: "roles",
		All: []string{"from roles"}, None: []string{"count(", "where"},
		Example: "SELECT * FROM roles ORDER BY name",
	},

	// companies
	{
		Shape: CompaniesCount, Intent: IntentSelect, Table: "companies",
		All: []string{"count(", "from companies"}, None: []string{"where"},
		Example: "SELECT COUNT(*) FROM companies",
	},
	{
		Shape: CompaniesByID, Intent: IntentSelect, Table: "companies",
		All:       []string{"from companies", "id = $"},
		MinParams: 1, Params: []string{"id"},
		Example: "SELECT * FROM companies WHERE id = $1",
	},
	{
		Shape: CompaniesAll, Intent: IntentSelect, Table: "companies",
		All: []string{"from companies"}, None: []string{"count(", "where"},
		Example: "SELECT * FROM companies ORDER BY name",
	},

	// services
	{
		Shape: ServicesByID, Intent: IntentSelect, Table: "services",
		All:       []string{"from services", "id = $"},
		MinParams: 1, Params: []string{"id"},
		Example: "SELECT * FROM services WHERE id = $1",
	},
	{
		Shape: ServicesAll, Intent: IntentSelect, Table: "services",
		All: []string{"from services"}, None: []string{"count(", "where"},
		Example: "SELECT * FROM services ORDER BY name",
	},

	// contracts
	{
		Shape: ContractsExpiring, Intent: IntentSelect, Table: "contracts",
		All:       []string{"from contracts", "status = $", "end_date <"},
		MinParams: 2, Params: []string{"status", "now"},
		Example: "SELECT id FROM contracts WHERE status = $1 AND end_date < $2",
	},
	{
		Shape: ContractsCount, Intent: IntentSelect, Table: "contracts",
		All: []string{"count(", "from contracts"}, None: []string{"where"},
		Example: "SELECT COUNT(*) FROM contracts",
	},
	{
		Shape: ContractsByCompany, Intent: IntentSelect, Table: "contracts",
		All:       []string{"from contracts", "company_id = $"},
		MinParams: 1, Params: []string{"company_id"},
		Example: "SELECT * FROM contracts WHERE company_id = $1 ORDER BY created_at",
	},
	{
		Shape: ContractsByID, Intent: IntentSelect, Table: "contracts",
		All:       []string{"from contracts", "id = $"},
		MinParams: 1, Params: []string{"id"},
		Example: "SELECT c.*, co.name AS company_name FROM contracts c LEFT JOIN companies co ON co.id = c.company_id WHERE c.id = $1",
	},
	{
		Shape: ContractsAll, Intent: IntentSelect, Table: "contracts",
		All: []string{"from contracts"}, None: []string{"count(", "where"},
		Example: "SELECT * FROM contracts ORDER BY created_at",
	},

	// contract_comments
	{
		Shape: CommentPermission, Intent: IntentSelect, Table: "contract_comments",
		All:       []string{"from contract_comments", "contract_access"},
		MinParams: 2, Params: []string{"comment_id", "user_id"},
		Example: "SELECT cc.id FROM contract_comments cc WHERE cc.id = $1 AND (cc.user_id = $2 " +
			"OR EXISTS (SELECT 1 FROM contract_access ca WHERE ca.contract_id = cc.contract_id AND ca.user_id = $2) " +
			"OR EXISTS (SELECT 1 FROM users u JOIN roles r ON r.id = u.role_id WHERE u.id = $2 AND r.name IN ('admin', 'manager')))",
	},
	{
		Shape: CommentsByContract, Intent: IntentSelect, Table: "contract_comments",
		All:       []string{"from contract_comments", "contract_id = $"},
		MinParams: 1, Params: []string{"contract_id"},
		Example: "SELECT cc.*, u.name AS author_name FROM contract_comments cc LEFT JOIN users u ON u.id = cc.user_id WHERE cc.contract_id = $1 ORDER BY cc.created_at",
	},
	{
		Shape: CommentsByID, Intent: IntentSelect, Table: "contract_comments",
		All:       []string{"from contract_comments", "id = $"},
		MinParams: 1, Params: []string{"id"},
		Example: "SELECT * FROM contract_comments WHERE id = $1",
	},

	// comment_attachments
	{
		Shape: AttachmentsByComment, Intent: IntentSelect, Table: "comment_attachments",
		All:       []string{"from comment_attachments", "comment_id = $"},
		MinParams: 1, Params: []string{"comment_id"},
		Example: "SELECT a.*, u.name AS uploader_name FROM comment_attachments a LEFT JOIN users u ON u.id = a.uploaded_by WHERE a.comment_id = $1 ORDER BY a.created_at",
	},
	{
		Shape: AttachmentByID, Intent: IntentSelect, Table: "comment_attachments",
		All:       []string{"from comment_attachments", "id = $"},
		MinParams: 1, Params: []string{"id"},
		Example: "SELECT * FROM comment_attachments WHERE id = $1",
	},

	// contract_access
	{
		Shape: AccessByContractAndUser, Intent: IntentSelect, Table: "contract_access",
		All:       []string{"from contract_access", "contract_id = $", "user_id = $"},
		MinParams: 2, Params: []string{"contract_id", "user_id"},
		Example: "SELECT * FROM contract_access WHERE contract_id = $1 AND user_id = $2",
	},
	{
		Shape: AccessByContract, Intent: IntentSelect, Table: "contract_access",
		All:       []string{"from contract_access", "contract_id = $"},
		MinParams: 1, Params: []string{"contract_id"},
		Example: "SELECT * FROM contract_access WHERE contract_id = $1 ORDER BY created_at",
	},

	// inserts: required positions are enforced by the handler
	{
		Shape: UsersInsert, Intent: IntentInsert, Table: "users",
		All:    []string{"insert into users"},
		Params: []string{"name", "email", "password_hash", "role_id", "is_active"},
		Example: "INSERT INTO users (name, email, password_hash, role_id, is_active) VALUES ($1, $2, $3, $4, $5) " +
			"RETURNING id, name, email, role_id, is_active, created_at",
	},
	{
		Shape: RolesInsert, Intent: IntentInsert, Table: "roles",
		All:     []string{"insert into roles"},
		Params:  []string{"name"},
		Example: "INSERT INTO roles (name) VALUES ($1) RETURNING *",
	},
	{
		Shape: CompaniesInsert, Intent: IntentInsert, Table: "companies",
		All:     []string{"insert into companies"},
		Params:  []string{"name", "document", "email", "phone"},
		Example: "INSERT INTO companies (name, document, email, phone) VALUES ($1, $2, $3, $4) RETURNING *",
	},
	{
		Shape: ServicesInsert, Intent: IntentInsert, Table: "services",
		All:     []string{"insert into services"},
		Params:  []string{"name", "description", "price"},
		Example: "INSERT INTO services (name, description, price) VALUES ($1, $2, $3) RETURNING *",
	},
	{
		Shape: ContractsInsert, Intent: IntentInsert, Table: "contracts",
		All:    []string{"insert into contracts"},
		Params: []string{"company_id", "title", "status", "value", "start_date", "end_date", "created_by"},
		Example: "INSERT INTO contracts (company_id, title, status, value, start_date, end_date, created_by) " +
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING *",
	},
	{
		Shape: CommentsInsert, Intent: IntentInsert, Table: "contract_comments",
		All:     []string{"insert into contract_comments"},
		Params:  []string{"contract_id", "user_id", "content"},
		Example: "INSERT INTO contract_comments (contract_id, user_id, content) VALUES ($1, $2, $3) RETURNING *",
	},
	{
		Shape: AttachmentsInsert, Intent: IntentInsert, Table: "comment_attachments",
		All:    []string{"insert into comment_attachments"},
		Params: []string{"comment_id", "uploaded_by", "file_name", "file_path", "file_size", "mime_type"},
		Example: "INSERT INTO comment_attachments (comment_id, uploaded_by, file_name, file_path, file_size, mime_type) " +
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING *",
	},
	{
		Shape: AccessInsert, Intent: IntentInsert, Table: "contract_access",
		All:     []string{"insert into contract_access"},
		Params:  []string{"contract_id", "user_id", "granted_by"},
		Example: "INSERT INTO contract_access (contract_id, user_id, granted_by) VALUES ($1, $2, $3) RETURNING *",
	},

	// fixed updates; everything else with a SET clause falls back to UpdateGeneric
	{
		Shape: UsersSetPassword, Intent: IntentUpdate, Table: "users",
		All:       []string{"update users", "password_hash = $"},
		MinParams: 2, Key: "id = $2",
		Sets:    []string{"password_hash = $1", "reset_token = null", "reset_token_expires = null"},
		Params:  []string{"password_hash", "id"},
		Example: "UPDATE users SET password_hash = $1, reset_token = NULL, reset_token_expires = NULL, updated_at = NOW() WHERE id = $2",
	},
	{
		Shape: UsersSetResetToken, Intent: IntentUpdate, Table: "users",
		All:       []string{"update users", "reset_token = $", "reset_token_expires = $", "email = $"},
		MinParams: 3, Key: "email = $3",
		Sets:    []string{"reset_token = $1", "reset_token_expires = $2"},
		Params:  []string{"reset_token", "reset_token_expires", "email"},
		Example: "UPDATE users SET reset_token = $1, reset_token_expires = $2 WHERE email = $3",
	},
	{
		Shape: UsersClearResetToken, Intent: IntentUpdate, Table: "users",
		All:       []string{"update users", "reset_token = null", "reset_token_expires = null"},
		None:      []string{"password_hash"},
		MinParams: 1, Key: "id = $1",
		Sets:    []string{"reset_token = null", "reset_token_expires = null"},
		Params:  []string{"id"},
		Example: "UPDATE users SET reset_token = NULL, reset_token_expires = NULL WHERE id = $1",
	},
}

// genericRules describe the table-independent shapes. They are never matched
// through the catalog loop.
var genericRules = []Rule{
	{
		Shape: UpdateGeneric, Intent: IntentUpdate,
		All: []string{"set"}, MinParams: 1,
		Params:  []string{"values...", "id"},
		Example: "UPDATE contracts SET status = $1 WHERE id = $2",
	},
	{
		Shape: DeleteAny, Intent: IntentDelete,
		Example: "DELETE FROM contracts WHERE id = $1",
	},
}

var (
	rulesByShape = map[Shape]Rule{}
	knownTables  = map[string]bool{}
)

func init() {
	// A count is only answered by a count shape, never by the record shape
	// it shares its WHERE anchors with.
	for i, r := range catalog {
		if r.Intent == IntentSelect && !slices.Contains(r.All, "count(") && !slices.Contains(r.None, "count(") {
			catalog[i].None = append(r.None[:len(r.None):len(r.None)], "count(")
		}
	}
	for _, r := range catalog {
		rulesByShape[r.Shape] = r
		knownTables[r.Table] = true
	}
	for _, r := range genericRules {
		rulesByShape[r.Shape] = r
	}
}

// Lookup returns the rule that recognizes shape.
func Lookup(shape Shape) (Rule, bool) {
	r, ok := rulesByShape[shape]
	return r, ok
}

// Rules returns every recognized shape in matching order followed by the
// table-independent shapes.
func Rules() []Rule {
	out := make([]Rule, 0, len(catalog)+len(genericRules))
	out = append(out, catalog...)
	return append(out, genericRules...)
}

// Tables returns the known tables, sorted.
func Tables() []string {
	out := make([]string, 0, len(knownTables))
	for t := range knownTables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// IsKnownTable reports whether table has recognized shapes.
func IsKnownTable(table string) bool {
	return knownTables[table]
}

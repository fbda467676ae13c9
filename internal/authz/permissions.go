package authz

// PermissionTag is a catalog entry for a capability string. Tags are an open
// set: product adds new ones frequently, so the evaluator treats them as
// opaque interned strings rather than a closed enum.
type PermissionTag struct {
	Key         string
	Description string
}

// Well-known permission tags, grouped by subject area.
const (
	// Research news
	PermEditResearchNews   = "EDIT_RESEARCH_NEWS"
	PermDeleteResearchNews = "DELETE_RESEARCH_NEWS"

	// Opportunities and scholarships
	PermAddOpportunity     = "ADD_OPPORTUNITY"
	PermEditOpportunity    = "EDIT_OPPORTUNITY"
	PermDeleteOpportunity  = "DELETE_OPPORTUNITY"
	PermManageScholarships = "MANAGE_SCHOLARSHIPS"

	// Mentorship
	PermManageMentors = "MANAGE_MENTORS"

	// Team and directory administration
	PermTeamManagementAdmin = "TEAM_MANAGEMENT_ADMIN"
	PermManageDirectory     = "MANAGE_DIRECTORY"
	PermManageAccounts      = "MANAGE_ACCOUNTS"
	PermManageGrants        = "MANAGE_GRANTS"
)

// BuiltinPermissions is seeded into the store on startup so grants can
// reference tags by key.
var BuiltinPermissions = []PermissionTag{
	{Key: PermEditResearchNews, Description: "Edit research news posts"},
	{Key: PermDeleteResearchNews, Description: "Delete research news posts"},
	{Key: PermAddOpportunity, Description: "Publish opportunities"},
	{Key: PermEditOpportunity, Description: "Edit opportunities"},
	{Key: PermDeleteOpportunity, Description: "Delete opportunities"},
	{Key: PermManageScholarships, Description: "Manage scholarship listings"},
	{Key: PermManageMentors, Description: "Manage mentor profiles"},
	{Key: PermTeamManagementAdmin, Description: "Administer organization teams"},
	{Key: PermManageDirectory, Description: "Manage the organizational directory"},
	{Key: PermManageAccounts, Description: "Manage principal accounts"},
	{Key: PermManageGrants, Description: "Grant and revoke permissions"},
}

package policy

// BuiltinPolicies returns the rules every deployment is checked against.
func BuiltinPolicies() []Policy {
	return []Policy{
		appNamingPolicy(),
		workspaceFolderPolicy(),
		secretScopePolicy(),
	}
}

// appNamingPolicy enforces app naming conventions: lowercase slugs that
// the control plane accepts without escaping.
func appNamingPolicy() Policy {
	return Policy{
		Name:        "app-naming",
		Description: "App names must be lowercase alphanumeric slugs, 3-63 characters",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package dbxdeploy.policies.naming

import rego.v1

deny contains violation if {
	name := input.target.app_name
	lower(name) != name
	violation := {
		"message": sprintf("app name '%s' must be lowercase", [name]),
		"severity": "error",
	}
}

deny contains violation if {
	name := input.target.app_name
	not regex.match("^[a-z0-9-]+$", name)
	violation := {
		"message": sprintf("app name '%s' must contain only lowercase letters, numbers, and hyphens", [name]),
		"severity": "error",
	}
}

deny contains violation if {
	name := input.target.app_name
	regex.match("^-|-$", name)
	violation := {
		"message": sprintf("app name '%s' must not start or end with a hyphen", [name]),
		"severity": "error",
	}
}

deny contains violation if {
	name := input.target.app_name
	count(name) < 3
	violation := {
		"message": sprintf("app name '%s' must be at least 3 characters long", [name]),
		"severity": "error",
	}
}

deny contains violation if {
	name := input.target.app_name
	count(name) > 63
	violation := {
		"message": sprintf("app name '%s' must be at most 63 characters long", [name]),
		"severity": "error",
	}
}
`,
	}
}

// secretScopePolicy flags secret provisioning without a named scope. The
// run is not denied: an empty scope falls back to interactive selection.
func secretScopePolicy() Policy {
	return Policy{
		Name:        "secret-scope",
		Description: "Secret provisioning without a named scope requires an interactive terminal",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package dbxdeploy.policies.scope

import rego.v1

deny contains violation if {
	input.with_secrets
	not input.scope
	violation := {
		"message": "no secret scope named, the scope will be selected interactively",
		"severity": "warning",
	}
}
`,
	}
}

// workspaceFolderPolicy keeps imports inside the per-user workspace area
// and consistent with the app name, so a deploy cannot clobber an
// unrelated workspace path.
func workspaceFolderPolicy() Policy {
	return Policy{
		Name:        "workspace-folder",
		Description: "App folder must live under /Workspace/Users/ and end with the app name",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package dbxdeploy.policies.workspace

import rego.v1

deny contains violation if {
	folder := input.target.app_folder
	not startswith(folder, "/Workspace/Users/")
	violation := {
		"message": sprintf("app folder '%s' must be under /Workspace/Users/", [folder]),
		"severity": "error",
	}
}

deny contains violation if {
	folder := input.target.app_folder
	name := input.target.app_name
	not endswith(folder, concat("", ["/", name]))
	violation := {
		"message": sprintf("app folder '%s' must end with the app name '%s'", [folder, name]),
		"severity": "error",
	}
}
`,
	}
}

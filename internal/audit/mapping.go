package audit

import "strings"

// ActionResource holds the verb and resource a request is recorded under.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseFullMethod returns action and resource for a gRPC full method (e.g. /casedesk.support.v1.SupportService/GetOrganization).
// Action is a verb: get, list, create, update, delete, or a lowercase method name for others.
// Resource is derived from the service name (e.g. SupportService -> support).
func ParseFullMethod(fullMethod string) ActionResource {
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(beforeSlash[dot+1:])}
}

// ParseRoute returns action and resource for an HTTP method and chi route pattern
// (e.g. GET /api/v1/support/organizations/{orgID}/users -> list user).
// A POST to a static segment after a parameter is a command: /sessions/{id}/end -> end session.
func ParseRoute(httpMethod, pattern string) ActionResource {
	var segs []string
	for _, s := range strings.Split(strings.Trim(pattern, "/"), "/") {
		if s == "" || s == "api" || (len(s) > 1 && s[0] == 'v' && isDigits(s[1:])) {
			continue
		}
		segs = append(segs, s)
	}
	if len(segs) == 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	last := segs[len(segs)-1]
	lastIsParam := isParam(last)

	if httpMethod == "POST" && !lastIsParam && len(segs) >= 3 && isParam(segs[len(segs)-2]) {
		return ActionResource{Action: strings.ToLower(last), Resource: singular(segs[len(segs)-3])}
	}

	resource := "unknown"
	for i := len(segs) - 1; i >= 0; i-- {
		if !isParam(segs[i]) {
			resource = singular(segs[i])
			break
		}
	}
	switch httpMethod {
	case "GET", "HEAD":
		if lastIsParam {
			return ActionResource{Action: "get", Resource: resource}
		}
		return ActionResource{Action: "list", Resource: resource}
	case "POST":
		return ActionResource{Action: "create", Resource: resource}
	case "PUT", "PATCH":
		return ActionResource{Action: "update", Resource: resource}
	case "DELETE":
		return ActionResource{Action: "delete", Resource: resource}
	default:
		return ActionResource{Action: strings.ToLower(httpMethod), Resource: resource}
	}
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func singular(seg string) string {
	seg = strings.ReplaceAll(seg, "-", "_")
	if strings.HasSuffix(seg, "s") && !strings.HasSuffix(seg, "ss") {
		return seg[:len(seg)-1]
	}
	return seg
}

func serviceToResource(serviceName string) string {
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	switch {
	case strings.HasPrefix(method, "Get") && method != "Get":
		return "get"
	case strings.HasPrefix(method, "List"):
		return "list"
	case strings.HasPrefix(method, "Create"), strings.HasPrefix(method, "Start"):
		return "create"
	case strings.HasPrefix(method, "Update"):
		return "update"
	case strings.HasPrefix(method, "Delete"):
		return "delete"
	case strings.HasPrefix(method, "End"):
		return "end"
	case strings.HasPrefix(method, "Verify"):
		return "verify"
	case strings.HasPrefix(method, "Export"):
		return "export"
	default:
		return strings.ToLower(method)
	}
}

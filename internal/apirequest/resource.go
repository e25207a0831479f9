// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apirequest

import (
	"net/http"
	"strings"

	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// resourceKind is the classification of a URL path before the method matrix
// is applied.
type resourceKind int

const (
	resourceSchema resourceKind = iota
	resourceRoutine
	resourceRelation
)

type resource struct {
	kind resourceKind
	name string
}

// parseResource classifies the URL path per §4.3's "Path → Resource" rules.
func parseResource(path string) (resource, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return resource{kind: resourceSchema}, nil
	}
	segments := strings.Split(trimmed, "/")
	if segments[0] == "rpc" {
		if len(segments) < 2 || segments[1] == "" {
			return resource{}, apperr.InvalidPath("missing routine name after /rpc/")
		}
		return resource{kind: resourceRoutine, name: segments[1]}, nil
	}
	return resource{kind: resourceRelation, name: segments[0]}, nil
}

// DescribeResource classifies a URL path the same way Parse does,
// surfacing just enough to answer an OPTIONS info request: dispatchAction
// leaves DbAction nil for ActionRelationInfo/ActionRoutineInfo, so the API
// layer needs the resource name independent of the parsed ApiRequest.
func DescribeResource(path string) (isRoutine bool, name string, err error) {
	res, err := parseResource(path)
	if err != nil {
		return false, "", err
	}
	return res.kind == resourceRoutine, res.name, nil
}

// dispatchAction applies §4.3's exhaustive method × resource table.
func dispatchAction(method string, res resource) (Action, *DbAction, error) {
	switch res.kind {
	case resourceSchema:
		switch method {
		case http.MethodGet:
			return ActionDb, &DbAction{Kind: DbSchemaRead}, nil
		case http.MethodHead:
			return ActionDb, &DbAction{Kind: DbSchemaRead, HeadersOnly: true}, nil
		case http.MethodOptions:
			return ActionSchemaInfo, nil, nil
		default:
			return 0, nil, apperr.UnsupportedMethod(method, "/")
		}

	case resourceRoutine:
		qi := QualifiedName{Name: res.name}
		switch method {
		case http.MethodGet:
			return ActionDb, &DbAction{Kind: DbRoutine, QI: qi, InvokeMethod: InvokeRead}, nil
		case http.MethodHead:
			return ActionDb, &DbAction{Kind: DbRoutine, QI: qi, InvokeMethod: InvokeRead, HeadersOnly: true}, nil
		case http.MethodPost:
			return ActionDb, &DbAction{Kind: DbRoutine, QI: qi, InvokeMethod: InvokeWrite}, nil
		case http.MethodOptions:
			return ActionRoutineInfo, nil, nil
		default:
			return 0, nil, apperr.UnsupportedMethod(method, "/rpc/"+res.name)
		}

	default: // resourceRelation
		qi := QualifiedName{Name: res.name}
		switch method {
		case http.MethodGet:
			return ActionDb, &DbAction{Kind: DbRelationRead, QI: qi}, nil
		case http.MethodHead:
			return ActionDb, &DbAction{Kind: DbRelationRead, QI: qi, HeadersOnly: true}, nil
		case http.MethodPost:
			return ActionDb, &DbAction{Kind: DbRelationMut, QI: qi, Mutation: MutationCreate}, nil
		case http.MethodPatch:
			return ActionDb, &DbAction{Kind: DbRelationMut, QI: qi, Mutation: MutationUpdate}, nil
		case http.MethodPut:
			return ActionDb, &DbAction{Kind: DbRelationMut, QI: qi, Mutation: MutationSingleUpsert}, nil
		case http.MethodDelete:
			return ActionDb, &DbAction{Kind: DbRelationMut, QI: qi, Mutation: MutationDelete}, nil
		case http.MethodOptions:
			return ActionRelationInfo, nil, nil
		default:
			return 0, nil, apperr.UnsupportedMethod(method, res.name)
		}
	}
}

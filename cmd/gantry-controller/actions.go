// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gantry-project/gantry/controller"
	"github.com/gantry-project/gantry/lib/codec"
	"github.com/gantry-project/gantry/lib/socket"
)

// registerActions registers the controller's socket API actions.
func registerActions(server *socket.Server, ctrl *controller.Controller) {
	server.Handle("cluster-register", handleClusterRegister(ctrl))
	server.Handle("member-start", handleMemberStart(ctrl))
	server.Handle("member-terminate", handleMemberTerminate(ctrl))
	server.Handle("cluster-terminate", handleClusterTerminate(ctrl))
	server.Handle("status", handleStatus(ctrl))
}

// decodeRequest decodes the raw CBOR request into the action's request
// struct. The "action" routing field is ignored by the decoder.
func decodeRequest(raw []byte, target any) error {
	if err := codec.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// handleClusterRegister binds an application cluster to a cartridge
// type. Returns the cluster record, including any proxy services kept
// from an earlier generation.
func handleClusterRegister(ctrl *controller.Controller) socket.ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		var req controller.RegisterClusterRequest
		if err := decodeRequest(raw, &req); err != nil {
			return nil, err
		}
		return ctrl.RegisterCluster(ctx, req)
	}
}

// handleMemberStart deploys a member workload and waits for its
// instance to appear. A request without a member id gets one assigned
// from the cluster id and a fresh UUID. Returns the started member.
func handleMemberStart(ctrl *controller.Controller) socket.ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		var req controller.StartRequest
		if err := decodeRequest(raw, &req); err != nil {
			return nil, err
		}
		if req.MemberID == "" && req.ClusterID != "" {
			req.MemberID = req.ClusterID + "-" + uuid.NewString()
		}
		return ctrl.StartMember(ctx, req)
	}
}

// memberTerminateRequest identifies the member to remove.
type memberTerminateRequest struct {
	MemberID string `json:"member_id"`
}

// handleMemberTerminate removes one member and its backend objects.
// Returns the removed member record.
func handleMemberTerminate(ctrl *controller.Controller) socket.ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		var req memberTerminateRequest
		if err := decodeRequest(raw, &req); err != nil {
			return nil, err
		}
		return ctrl.TerminateMember(ctx, req.MemberID)
	}
}

// clusterTerminateRequest identifies the cluster to sweep.
type clusterTerminateRequest struct {
	ClusterID string `json:"cluster_id"`
}

// clusterTerminateResponse lists the members removed by the sweep.
type clusterTerminateResponse struct {
	MemberIDs []string `json:"member_ids"`
}

// handleClusterTerminate removes every member of a cluster, continuing
// past per-member failures.
func handleClusterTerminate(ctrl *controller.Controller) socket.ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		var req clusterTerminateRequest
		if err := decodeRequest(raw, &req); err != nil {
			return nil, err
		}
		removed, err := ctrl.TerminateCluster(ctx, req.ClusterID)
		if err != nil {
			return nil, err
		}
		response := clusterTerminateResponse{MemberIDs: make([]string, 0, len(removed))}
		for _, member := range removed {
			response.MemberIDs = append(response.MemberIDs, member.MemberID)
		}
		return response, nil
	}
}

// handleStatus returns controller counts and port pool usage.
func handleStatus(ctrl *controller.Controller) socket.ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		return ctrl.Status(), nil
	}
}

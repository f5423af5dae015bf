package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ellogroup/ello-golang-orgrouter/dispatch"
	"github.com/ellogroup/ello-golang-orgrouter/tracing"
)

// runFlags holds the run command flags. Every action parameter is passed on as set,
// the flag defaults match the dispatch defaults.
type runFlags struct {
	action      string
	query       string
	folderId    string
	fileName    string
	fileContent string
	context     string
	trace       bool
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one action and print the output records as json",
	Args:  cobra.NoArgs,
	RunE:  runAction,
}

func init() {
	bindRunFlags(runCmd, &runOpts)
	rootCmd.AddCommand(runCmd)
}

func bindRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.action, "action", string(dispatch.ActionFetchSalesforceData), "fetchSalesforceData or uploadToGoogleDrive")
	cmd.Flags().StringVar(&f.query, "query", dispatch.DefaultSalesforceQuery, "SOQL query")
	cmd.Flags().StringVar(&f.folderId, "folder-id", "", "google drive folder to upload into")
	cmd.Flags().StringVar(&f.fileName, "file-name", dispatch.DefaultFileName, "name of the uploaded file")
	cmd.Flags().StringVar(&f.fileContent, "file-content", dispatch.DefaultFileContent, "content of the uploaded file")
	cmd.Flags().StringVar(&f.context, "context", "{}", "workflow context json sent to the decision service")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "write spans to stderr, stdout carries the output records")
}

func (f runFlags) parameters() dispatch.Parameters {
	return dispatch.Parameters{
		Action:              dispatch.Action(f.action),
		SalesforceQuery:     dispatch.String(f.query),
		GoogleDriveFolderId: f.folderId,
		FileName:            dispatch.String(f.fileName),
		FileContent:         dispatch.String(f.fileContent),
	}
}

func (f runFlags) workflowContext() (dispatch.WorkflowContext, error) {
	var workflowCtx dispatch.WorkflowContext
	if err := json.Unmarshal([]byte(f.context), &workflowCtx); err != nil {
		return nil, fmt.Errorf("parsing context json: %w", err)
	}
	return workflowCtx, nil
}

func runAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	workflowCtx, err := runOpts.workflowContext()
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if runOpts.trace {
		shutdown, err := tracing.Init("orgrouter", version, os.Stderr)
		if err != nil {
			return fmt.Errorf("initialising tracing: %w", err)
		}
		defer func() { _ = shutdown(ctx) }()
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	d, err := newDispatcher(cfg, log)
	if err != nil {
		return err
	}

	out, err := d.Execute(ctx, runOpts.parameters(), workflowCtx)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

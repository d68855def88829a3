package commands

import (
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/sitedata"
	"git.home.luguber.info/inful/sitebuilder/internal/verify"
)

// VerifyCmd implements the 'verify' command.
type VerifyCmd struct {
	Dir      string `arg:"" help:"Build output directory" type:"path"`
	Strict   bool   `help:"Exit non-zero when any warning is reported"`
	SiteData string `help:"Site document the output was built from; page counts are checked against it" type:"path"`
}

type verifyOutput struct {
	*verify.Result
	Warnings []string `json:"warnings,omitempty"`
}

func (v *VerifyCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, true)
	if err != nil {
		return err
	}
	res := verify.New(cfg.Verify, g.logger()).Verify(v.Dir)
	if v.SiteData != "" {
		doc, err := sitedata.Read(v.SiteData)
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to read site data").
				WithContext("path", v.SiteData).
				Build()
		}
		res.CompareExpected(len(doc.Articles), len(doc.Categories))
	}
	if err := printJSON(g.out(), verifyOutput{Result: res, Warnings: res.WarningMessages()}); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to write verification result").Build()
	}
	if v.Strict && len(res.Warnings) > 0 {
		return errors.VerificationWarning("build output has warnings").
			WithContext("dir", v.Dir).
			WithContext("warnings", len(res.Warnings)).
			Build()
	}
	return nil
}

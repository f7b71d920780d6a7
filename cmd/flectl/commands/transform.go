package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cosmosfle/fle/internal/app"
	"github.com/cosmosfle/fle/internal/fle/repository"
	"github.com/cosmosfle/fle/internal/fle/usecase"
	"github.com/cosmosfle/fle/internal/validation"
)

type transformFunc func(ctx context.Context, r io.Reader) (io.Reader, error)

// RunEncrypt loads the policy file for containerName, encrypts the
// JSON document at docPath (or stdin when empty) per the installed
// policy, and writes the result to out.
func RunEncrypt(
	ctx context.Context,
	appContainer *app.Container,
	logger *slog.Logger,
	containerName, policyPath, docPath string,
	out io.Writer,
) error {
	return runTransform(ctx, appContainer, logger, containerName, policyPath, docPath, out, func(p usecase.EncryptDecryptor) transformFunc {
		return p.Encrypt
	})
}

// RunDecrypt is the inverse of RunEncrypt.
func RunDecrypt(
	ctx context.Context,
	appContainer *app.Container,
	logger *slog.Logger,
	containerName, policyPath, docPath string,
	out io.Writer,
) error {
	return runTransform(ctx, appContainer, logger, containerName, policyPath, docPath, out, func(p usecase.EncryptDecryptor) transformFunc {
		return p.Decrypt
	})
}

func runTransform(
	ctx context.Context,
	appContainer *app.Container,
	logger *slog.Logger,
	containerName, policyPath, docPath string,
	out io.Writer,
	pick func(usecase.EncryptDecryptor) transformFunc,
) error {
	if containerName == "" {
		containerName = appContainer.Config().Container
	}

	if err := loadPolicyFile(appContainer, containerName, policyPath); err != nil {
		return err
	}

	processor, err := appContainer.Processor(containerName)
	if err != nil {
		return fmt.Errorf("failed to build processor: %w", err)
	}

	docReader, err := openInput(DefaultIO(), docPath)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer docReader.Close()

	transform := pick(processor)
	result, err := transform(ctx, docReader)
	if err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}

	if _, err := io.Copy(out, result); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logger.Info("document transformed", slog.String("container", containerName))
	return nil
}

// loadPolicyFile reads policyPath and installs its policy and key
// properties into appContainer's demo metadata source, validating
// every included path via internal/validation.IncludedPath along the
// way.
func loadPolicyFile(appContainer *app.Container, containerName, policyPath string) error {
	if policyPath == "" {
		return nil
	}

	f, err := os.Open(policyPath)
	if err != nil {
		return fmt.Errorf("failed to open policy file: %w", err)
	}
	defer f.Close()

	pf, err := repository.DecodePolicyFile(f)
	if err != nil {
		return fmt.Errorf("failed to decode policy file: %w", err)
	}

	for _, ip := range pf.IncludedPaths {
		if err := validation.IncludedPath.Validate(ip.Path); err != nil {
			return validation.WrapValidationError(fmt.Errorf("included path %q: %w", ip.Path, err))
		}
	}

	if err := pf.Install(appContainer.MetadataSource(), containerName); err != nil {
		return fmt.Errorf("failed to install policy: %w", err)
	}
	return nil
}

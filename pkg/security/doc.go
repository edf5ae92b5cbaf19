/*
Package security holds the key material of provisioned clusters.

GenerateKeyPair creates the RSA management key pair injected into every
instance of a cluster. The private key is PEM encoded, the public key is in
authorized_keys format, and ParsePrivateKey turns the former into an SSH
signer for package remote.

SecretsManager seals sensitive document fields with AES-256-GCM before they
are stored:

	sm, err := security.NewSecretsManagerFromPassword(cfg.SecretKey)
	if err != nil {
		return err
	}
	sealed, err := sm.SealString(cluster.ManagementPrivateKey)

Sealed strings carry a "sealed:" prefix followed by base64 of nonce and
ciphertext, so they can live inside JSON documents and be told apart from
values written before a key was configured. OpenString returns unsealed
values unchanged.
*/
package security

package projects

// registry holds every installable project. Script bodies are static
// templates with {param} placeholders substituted at render time.
var registry = map[string]*Definition{
	"Titan Network": {
		Name:        "Titan Network",
		Description: "Titan Edge Mining Node (Docker based)",
		Params:      []string{"identity_code"},
		Flag:        FlagTitan,
		template: `#!/bin/bash
# Install dependencies
if [ -f /etc/debian_version ]; then
    apt-get update && apt-get install -y docker.io curl
    systemctl start docker
    systemctl enable docker
else
    yum update -y && yum install -y docker curl
    service docker start
    systemctl enable docker
fi

# Pull image
docker pull nezha123/titan-edge

# Wait for network/docker
sleep 10

# Run the container. Host network keeps port binding simple; the volume
# mapping persists the node identity across restarts.
docker run -d --restart always --network host --name titan-edge \
  -v ~/.titanedge:/root/.titanedge \
  nezha123/titan-edge

# Wait for container initialization
sleep 15

# Bind identity against the running daemon inside the container.
docker exec titan-edge titan-edge bind --hash={identity_code} https://api-test1.container1.titannet.io/api/v2/device/binding
`,
	},
	"Meson (GagaNode)": {
		Name:        "Meson (GagaNode)",
		Description: "Meson Network GagaNode (Binary based)",
		Params:      []string{"token"},
		Flag:        FlagMeson,
		template: `#!/bin/bash
yum update -y
# Install dependencies
yum install -y curl tar ca-certificates

# Download and install GagaNode
curl -o apphub-linux-amd64.tar.gz https://assets.coreservice.io/public/package/60/app-market-gaga-pro/1.0.4/app-market-gaga-pro-1_0_4.tar.gz
tar -zxf apphub-linux-amd64.tar.gz
rm -f apphub-linux-amd64.tar.gz
cd ./apphub-linux-amd64

# Install and start service
sudo ./apphub service install
sudo ./apphub service start
sleep 10

# Set token
sudo ./apps/gaganode/gaganode config set --token={token}

# Restart to apply changes
sudo ./apphub restart
`,
	},
	"Nexus Prover": {
		Name:        "Nexus Prover",
		Description: "Nexus Prover (Limited to 3 vCPU / 16GB RAM)",
		Params:      []string{"wallet_address"},
		Flag:        FlagNexus,
		template: `#!/bin/bash
# Install dependencies
if [ -f /etc/debian_version ]; then
    apt-get update && apt-get install -y curl build-essential git unzip
else
    yum update -y && yum install -y curl git unzip
    yum groupinstall -y "Development Tools"
fi

# Install Rust
curl --proto '=https' --tlsv1.2 -sSf https://sh.rustup.rs | sh -s -- -y
source $HOME/.cargo/env

# Install Nexus CLI
curl https://cli.nexus.xyz/ | sh

# Wait for install
sleep 10

# Locate CLI binary; install location moved between releases.
if [ -f "$HOME/.nexus/nexus-cli" ]; then
    CLI_PATH="$HOME/.nexus/nexus-cli"
elif [ -f "$HOME/.nexus/bin/prover" ]; then
    CLI_PATH="$HOME/.nexus/bin/prover"
elif [ -f "/root/.nexus/bin/prover" ]; then
    CLI_PATH="/root/.nexus/bin/prover"
else
    CLI_PATH=$(find $HOME/.nexus -name "prover" -o -name "nexus-cli" | head -n 1)
fi

echo "Using Nexus CLI at: $CLI_PATH"

# Register with wallet
if [ -n "$CLI_PATH" ]; then
    $CLI_PATH beta-program:cli:register --wallet-address "{wallet_address}" || $CLI_PATH register-user --wallet-address "{wallet_address}" || echo "Registration command failed or not supported in this version, proceeding to start..."
fi

# Systemd service with resource limits
cat <<EOF > /etc/systemd/system/nexus-prover.service
[Unit]
Description=Nexus Prover Service
After=network.target

[Service]
Type=simple
User=root
Environment=NONINTERACTIVE=1
ExecStart=$CLI_PATH start
Restart=always
RestartSec=5
CPUQuota=300%
MemoryLimit=16G

[Install]
WantedBy=multi-user.target
EOF

systemctl daemon-reload
systemctl enable nexus-prover
systemctl start nexus-prover
`,
	},
	"Nillion Verifier": {
		Name:        "Nillion Verifier",
		Description: "Nillion Verifier (Docker, Limited to 8GB RAM)",
		Params:      []string{"verifier_key"},
		template: `#!/bin/bash
# Ensure Docker is ready
systemctl start docker

# Pull image
docker pull nillion/verifier:v1.0.1

# Run with memory limit
docker run -d --restart always --name nillion-verifier \
  --memory="8g" \
  -e VERIFIER_PRIVATE_KEY="{verifier_key}" \
  nillion/verifier:v1.0.1 verify --rpc-endpoint "https://testnet-nillion-rpc.nillion-network.xyz"
`,
	},
	"Rivalz rNode": {
		Name:        "Rivalz rNode",
		Description: "Rivalz rNode (Docker, Limited to 4GB RAM)",
		Params:      []string{"wallet_address"},
		template: `#!/bin/bash
# Ensure Docker is ready
systemctl start docker

# Pull image
docker pull rivalz/rnode:latest

# Run with memory limit
docker run -d --restart always --name rivalz-node \
  --memory="4g" \
  -e WALLET_ADDRESS="{wallet_address}" \
  rivalz/rnode:latest
`,
	},
	"T3rn Executor": {
		Name:        "T3rn Executor",
		Description: "Hemera / T3rn Executor (Docker, Limited to 2GB RAM)",
		Params:      []string{"private_key"},
		template: `#!/bin/bash
# Ensure Docker is ready
systemctl start docker

# Pull image
docker pull t3rn/executor:latest

# Run with memory limit
docker run -d --restart always --name t3rn-executor \
  --memory="2g" \
  -e PRIVATE_KEY_EXPORT="{private_key}" \
  -e NODE_ENV="testnet" \
  t3rn/executor:latest
`,
	},
}
